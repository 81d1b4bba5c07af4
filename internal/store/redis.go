package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisRetention is the key TTL for scans and snapshots in Redis.
const DefaultRedisRetention = 7 * 24 * time.Hour

// RedisBackend stores JSON documents under prefixed keys with a TTL, which
// replaces sweeping.
type RedisBackend struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisBackend uses prefix for every key. retention <= 0 uses DefaultRedisRetention.
func NewRedisBackend(client redis.UniversalClient, prefix string, retention time.Duration) *RedisBackend {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisBackend{client: client, prefix: prefix, retention: retention}
}

func (r *RedisBackend) scanKey(id string) string {
	return r.prefix + "scan:" + id
}

func (r *RedisBackend) snapshotKey(key Key) string {
	return r.prefix + "snapshot:" + key.String()
}

func (r *RedisBackend) GetScan(ctx context.Context, id string) (*Scan, error) {
	var scan Scan
	if err := r.get(ctx, r.scanKey(id), &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *RedisBackend) PutScan(ctx context.Context, scan *Scan) error {
	return r.set(ctx, r.scanKey(scan.ID), scan)
}

func (r *RedisBackend) GetSnapshot(ctx context.Context, key Key) (*Snapshot, error) {
	var snap Snapshot
	if err := r.get(ctx, r.snapshotKey(key), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *RedisBackend) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	return r.set(ctx, r.snapshotKey(snap.Key()), snap)
}

// Sweep is a no-op; keys expire on their own.
func (r *RedisBackend) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) get(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err = json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err = r.client.Set(ctx, key, raw, r.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
