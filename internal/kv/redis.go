package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultMaxUpdateAttempts = 10

// ErrConflict is returned by Redis.Update when the key kept changing under the
// transaction for every attempt.
var ErrConflict = errors.New("kv: too many concurrent updates")

type RedisConfig struct {
	Redis redis.UniversalClient
	// MaxUpdateAttempts bounds WATCH retries in Update. Defaults to 10.
	MaxUpdateAttempts int
}

// Redis stores values as plain strings.
type Redis struct {
	redis       redis.UniversalClient
	maxAttempts int
}

func NewRedis(c RedisConfig) *Redis {
	r := &Redis{
		redis:       c.Redis,
		maxAttempts: c.MaxUpdateAttempts,
	}

	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxUpdateAttempts
	}

	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Update runs fn under WATCH. If the key changes between the read and the
// EXEC, the transaction is dropped and fn runs again on the fresh value.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			old = nil
		} else if err != nil {
			return err
		}

		v, err := fn(old)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, v, 0)
			return nil
		})
		return err
	}

	for i := 0; i < r.maxAttempts; i++ {
		err := r.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update %s: %w", key, err)
		}

		return nil
	}

	return fmt.Errorf("redis update %s: %w", key, ErrConflict)
}
