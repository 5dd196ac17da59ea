package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StateStore issues and consumes one-time OAuth login states. States are
// TTL'd in Redis and consumed atomically with GETDEL, so a state can
// authorize at most one callback even under concurrent replay.
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const stateKeyPrefix = "oauth:state:"

func NewStateStore(rdb *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{rdb: rdb, ttl: ttl}
}

// Issue mints a new state nonce and records it with a TTL.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.rdb.Set(ctx, stateKeyPrefix+state, "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume atomically claims a state. It reports false for unknown,
// expired, or already-consumed states.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	_, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
