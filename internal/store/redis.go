package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Params and Secrets on a Redis instance. Secrets live under
// their own key space so a parameter can never shadow one.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings addr.
func NewRedis(ctx context.Context, addr string, db int, prefix string) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis ping failed: %w", err)
	}
	return NewRedisFromClient(rdb, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(c *redis.Client, prefix string) *Redis {
	return &Redis{client: c, prefix: prefix}
}

func (r *Redis) key(space, k string) string {
	if r.prefix == "" {
		return space + ":" + k
	}
	return r.prefix + ":" + space + ":" + k
}

func (r *Redis) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	k := r.key("param", name)
	if id, ok := SecretIDFromReference(name); ok {
		if !decrypt {
			return "", ErrNotFound
		}
		k = r.key("secret", id)
	}
	v, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Redis) PutParameter(ctx context.Context, name, value string) error {
	return r.client.Set(ctx, r.key("param", name), value, 0).Err()
}

func (r *Redis) PutSecret(ctx context.Context, id, value string) error {
	return r.client.Set(ctx, r.key("secret", id), value, 0).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
