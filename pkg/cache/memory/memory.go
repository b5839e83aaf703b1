// Package memory is an in-process LRU cache backend.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps at most size entries, each for at most ttl. A zero ttl keeps
// entries until they are evicted.
type Cache struct {
	lru *expirable.LRU[string, []byte]
}

func New(size int, ttl time.Duration) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Close() error {
	c.lru.Purge()
	return nil
}
