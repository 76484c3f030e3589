package fees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiksha-erp/shiksha-erp/internal/fees/reports"
)

// RedisReportCache caches built cashbooks in Redis. Invalidation bumps a per
// tenant+session version counter that is baked into every entry key, so
// superseded entries age out on TTL without a scan-and-delete.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisReportCache wires the cache. A zero ttl defaults to five minutes.
func NewRedisReportCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisReportCache{client: client, ttl: ttl, logger: logger}
}

func versionKey(tenantID, sessionID int64) string {
	return fmt.Sprintf("fees:cashbook:%d:%d:ver", tenantID, sessionID)
}

func (c *RedisReportCache) entryKey(ctx context.Context, f ScanFilter) (string, error) {
	ver, err := c.client.Get(ctx, versionKey(f.TenantID, f.SessionID)).Result()
	if errors.Is(err, redis.Nil) {
		ver = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("fees:cashbook:%d:%d:v%s:%s:%s:%s",
		f.TenantID, f.SessionID, ver,
		f.From.UTC().Format("20060102"), f.To.UTC().Format("20060102"), f.ModeFilter()), nil
}

// GetCashbook returns a cached report; any backend problem is a miss.
func (c *RedisReportCache) GetCashbook(ctx context.Context, f ScanFilter) (reports.Cashbook, bool) {
	key, err := c.entryKey(ctx, f)
	if err != nil {
		c.logger.Warn("report cache get", slog.Any("error", err))
		return reports.Cashbook{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("report cache get", slog.Any("error", err))
		}
		return reports.Cashbook{}, false
	}
	var book reports.Cashbook
	if err := json.Unmarshal(raw, &book); err != nil {
		c.logger.Warn("report cache decode", slog.Any("error", err))
		return reports.Cashbook{}, false
	}
	return book, true
}

// SetCashbook stores a built report, best effort.
func (c *RedisReportCache) SetCashbook(ctx context.Context, f ScanFilter, book reports.Cashbook) {
	key, err := c.entryKey(ctx, f)
	if err != nil {
		c.logger.Warn("report cache set", slog.Any("error", err))
		return
	}
	raw, err := json.Marshal(book)
	if err != nil {
		c.logger.Warn("report cache encode", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("report cache set", slog.Any("error", err))
	}
}

// Invalidate bumps the tenant+session version so existing entries go stale.
func (c *RedisReportCache) Invalidate(ctx context.Context, tenantID, sessionID int64) {
	if err := c.client.Incr(ctx, versionKey(tenantID, sessionID)).Err(); err != nil {
		c.logger.Warn("report cache invalidate", slog.Any("error", err))
	}
}
