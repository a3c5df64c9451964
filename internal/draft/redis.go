package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joelkehle/readiness-audit/internal/form"
)

const keyPrefix = "audit:draft:"

// RedisStore keeps sessions as JSON strings that expire after ttl of
// inactivity.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, id string) (*form.Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	blob, err := r.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get draft: %w", err)
	}
	var s form.Session
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *form.Session) error {
	if err := checkID(s.ID); err != nil {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, keyPrefix+s.ID, blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return r.rdb.Del(ctx, keyPrefix+id).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
