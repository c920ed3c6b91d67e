// Package redis holds the access-token denylist. Logout records the
// token's jti here until its natural expiry, so the access token dies
// with the session instead of outliving it.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denyKeyPrefix = "tokens:denied:"

type Denylist struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*Denylist, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Denylist{client: client}, nil
}

// Deny blocks jti until the given time. A jti already past expiry is a
// no-op: there is nothing left to block.
func (d *Denylist) Deny(ctx context.Context, jti string, until time.Time) error {
	const op = "storage.redis.Deny"

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, denyKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *Denylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redis.IsDenied"

	n, err := d.client.Exists(ctx, denyKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (d *Denylist) Close() {
	_ = d.client.Close()
}
