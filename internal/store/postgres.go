package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrednh6/tradingschool/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Snapshots are stored whole as JSONB: the session round-trips losslessly
// through JSON and is only ever read or replaced as a unit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadSession(ctx context.Context, userID string) (*model.Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM sessions WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", userID, err)
	}
	return &sess, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, userID string, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", userID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (user_id, snapshot, updated_at)
		 VALUES ($1, $2::JSONB, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`,
		userID, data, time.Now().UTC(),
	)
	return err
}

func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}
