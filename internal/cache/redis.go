// Package cache keeps the latest status of every station in Redis so the
// HTTP API can answer without touching the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrCodingRobot/EmergencyStations/internal/modules/stations/types"
)

type RedisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStatusCache pings addr before returning.
func NewRedisStatusCache(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisStatusCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStatusCache{rdb: rdb, ttl: ttl}, nil
}

func key(station int) string {
	return fmt.Sprintf("station:%d:status", station)
}

func (c *RedisStatusCache) PublishStatus(ctx context.Context, st types.Status) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key(st.Station), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key(st.Station), err)
	}
	return nil
}

// GetStatus reports false when the station has no cached status.
func (c *RedisStatusCache) GetStatus(ctx context.Context, station int) (types.Status, bool, error) {
	b, err := c.rdb.Get(ctx, key(station)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Status{}, false, nil
	}
	if err != nil {
		return types.Status{}, false, err
	}
	var st types.Status
	if err := json.Unmarshal(b, &st); err != nil {
		return types.Status{}, false, fmt.Errorf("decode cached status %d: %w", station, err)
	}
	return st, true, nil
}

// GetStatuses returns the cached statuses of the given stations in order,
// skipping stations with nothing cached.
func (c *RedisStatusCache) GetStatuses(ctx context.Context, stations []int) ([]types.Status, error) {
	if len(stations) == 0 {
		return nil, nil
	}
	keys := make([]string, len(stations))
	for i, n := range stations {
		keys[i] = key(n)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.Status, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var st types.Status
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return nil, fmt.Errorf("decode cached status %s: %w", keys[i], err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *RedisStatusCache) Close() error {
	return c.rdb.Close()
}
