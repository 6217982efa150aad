package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPathCache stores one JSON document per (network, source) row.
type RedisPathCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisPathCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPathCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPathCache{client: client, ttl: ttl, logger: logger}
}

func pathRowKey(network string, source domain.IntersectionID) string {
	return fmt.Sprintf("paths:%s:%d", network, source)
}

func (c *RedisPathCache) GetRow(
	ctx context.Context,
	network string,
	source domain.IntersectionID,
) (_ map[domain.IntersectionID]ports.PathRecord, err error) {
	defer obs.Time(ctx, "paths.cache.redis.GetRow")(&err)

	key := pathRowKey(network, source)
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get path row %q: %w", key, err)
	}

	var records []ports.PathRecord
	if err := json.Unmarshal(val, &records); err != nil {
		return nil, fmt.Errorf("get path row %q: decode: %w", key, err)
	}

	row := make(map[domain.IntersectionID]ports.PathRecord, len(records))
	for _, r := range records {
		row[r.To] = r
	}

	c.logger.Debug("path row cache hit", zap.String("key", key), zap.Int("targets", len(row)))
	return row, nil
}

func (c *RedisPathCache) PutRow(
	ctx context.Context,
	network string,
	source domain.IntersectionID,
	row map[domain.IntersectionID]ports.PathRecord,
) (err error) {
	defer obs.Time(ctx, "paths.cache.redis.PutRow")(&err)

	if len(row) == 0 {
		return nil
	}

	records := make([]ports.PathRecord, 0, len(row))
	for to, r := range row {
		r.To = to
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b ports.PathRecord) int { return cmp.Compare(a.To, b.To) })

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("put path row: encode: %w", err)
	}

	key := pathRowKey(network, source)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("put path row %q: %w", key, err)
	}
	return nil
}

// Invalidate drops every cached row of a network.
func (c *RedisPathCache) Invalidate(ctx context.Context, network string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("paths:%s:*", network), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("invalidate path rows: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate path rows: delete: %w", err)
	}
	return nil
}
