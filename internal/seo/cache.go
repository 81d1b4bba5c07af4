package seo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache keeps raw provider responses in memory for a fixed TTL.
type Cache struct {
	entries *bigcache.BigCache
}

// NewCache builds a cache whose entries live for ttl, capped at maxSizeMB.
func NewCache(ctx context.Context, ttl time.Duration, maxSizeMB int) (*Cache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = ttl / 2
	cfg.HardMaxCacheSize = maxSizeMB
	cfg.MaxEntrySize = 16 * 1024
	cfg.Verbose = false

	entries, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) ([]byte, bool) {
	raw, err := c.entries.Get(key)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set stores raw under key.
func (c *Cache) Set(key string, raw []byte) error {
	return c.entries.Set(key, raw)
}

// Len is the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() error {
	if err := c.entries.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
