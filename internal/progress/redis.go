package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

const chainKeyPrefix = "chain:"

// RedisStore is the production Store. Expiry rides on the redis TTL, so
// there is no sweep to run; every Put rewrites the value with a fresh TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore verifies connectivity and returns a Store backed by the
// given client. A zero ttl means DefaultTTL.
func NewRedisStore(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, state content.ChainState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, chainKeyPrefix+id, data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (content.ChainState, bool, error) {
	val, err := s.client.Get(ctx, chainKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return content.ChainState{}, false, nil
		}
		return content.ChainState{}, false, err
	}
	var state content.ChainState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return content.ChainState{}, false, err
	}
	return state, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, chainKeyPrefix+id).Err()
}
