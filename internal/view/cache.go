// Package view caches per-station dashboard snapshots in Redis. Writers
// invalidate after commit; a failed invalidation never rolls anything back.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache wraps Redis caching with a per-station version counter. Keys embed
// the version, so invalidation is one INCR and stale entries age out by TTL.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client degrades to
// loader-only operation.
func NewCache(client *redis.Client, logger *slog.Logger, ttl time.Duration) *Cache {
	return &Cache{client: client, logger: logger, ttl: ttl}
}

func versionKey(stationID uuid.UUID) string {
	return "view:station:" + stationID.String() + ":ver"
}

func (c *Cache) version(ctx context.Context, stationID uuid.UUID) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(stationID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// FetchJSON loads the cached value for the station-scoped key or populates
// it using the loader. Concurrent misses for the same key collapse into one
// loader call.
func (c *Cache) FetchJSON(ctx context.Context, stationID uuid.UUID, name string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("view: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	ver, err := c.version(ctx, stationID)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("view:station:%s:%s:%d", stationID, name, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	raw, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate bumps the station's cache version. Fire and forget: it runs on
// a detached context and only logs on failure.
func (c *Cache) Invalidate(ctx context.Context, stationID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := c.client.Incr(ctx, versionKey(stationID)).Err(); err != nil && c.logger != nil {
			c.logger.Warn("view invalidate",
				slog.String("station_id", stationID.String()),
				slog.Any("error", err))
		}
	}()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
