// Package cache stores encoded results keyed by content hash so repeated
// requests can skip the work.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/menta2k/cocomask/pkg/cache/memory"
	"github.com/menta2k/cocomask/pkg/cache/redis"
)

// Cache is a byte store. Get reports a miss with ok == false and a nil
// error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is "none", "memory" or "redis".
	Backend string
	// Size bounds the number of entries of the memory backend.
	Size int
	TTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New creates the backend named by opts.Backend. The redis backend is
// pinged before it is returned.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", "none":
		return None{}, nil
	case "memory":
		return memory.New(opts.Size, opts.TTL), nil
	case "redis":
		c := redis.New(redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			TTL:      opts.TTL,
		})
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.RedisAddr, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (None) Set(context.Context, string, []byte) error         { return nil }
func (None) Close() error                                      { return nil }

// GetJSON decodes the value stored under key into v.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data)
}
