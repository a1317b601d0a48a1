package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andrednh6/tradingschool/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) LoadSession(ctx context.Context, userID string) (*model.Session, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err == nil {
		var sess model.Session
		if json.Unmarshal(data, &sess) == nil {
			return &sess, nil
		}
	}

	// Cache miss: read from primary.
	sess, err := s.primary.LoadSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheSession(ctx, userID, sess)
	return sess, nil
}

func (s *CachedStore) SaveSession(ctx context.Context, userID string, sess *model.Session) error {
	if err := s.primary.SaveSession(ctx, userID, sess); err != nil {
		return err
	}
	s.cacheSession(ctx, userID, sess)
	return nil
}

func (s *CachedStore) DeleteSession(ctx context.Context, userID string) error {
	if err := s.primary.DeleteSession(ctx, userID); err != nil {
		return err
	}
	s.rdb.Del(ctx, sessionKey(userID))
	return nil
}

func (s *CachedStore) cacheSession(ctx context.Context, userID string, sess *model.Session) {
	if data, err := json.Marshal(sess); err == nil {
		s.rdb.Set(ctx, sessionKey(userID), data, s.ttl)
	}
}

func sessionKey(userID string) string { return fmt.Sprintf("session:%s", userID) }
