// Package store defines the persistence interface for session snapshots.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// The snapshot is the sole source of truth: saves are fire-and-forget from
// the engine's point of view and a failed save never rolls back an
// in-memory transition.
package store

import (
	"context"
	"errors"

	"github.com/andrednh6/tradingschool/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a user.
var ErrNotFound = errors.New("store: session not found")

// Store persists one session snapshot per user.
type Store interface {
	// LoadSession retrieves the snapshot for userID, or ErrNotFound.
	LoadSession(ctx context.Context, userID string) (*model.Session, error)

	// SaveSession upserts the snapshot for userID.
	SaveSession(ctx context.Context, userID string, s *model.Session) error

	// DeleteSession discards the snapshot for userID. Deleting a missing
	// snapshot is not an error.
	DeleteSession(ctx context.Context, userID string) error
}
