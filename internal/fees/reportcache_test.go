package fees

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiksha-erp/shiksha-erp/internal/fees/reports"
)

func newCacheForTest(t *testing.T) (*RedisReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisReportCache(client, time.Minute, nil), mr
}

func cacheFilter(tenantID int64) ScanFilter {
	return ScanFilter{
		TenantID:  tenantID,
		SessionID: 2025,
		From:      time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC),
		Mode:      ModeAll,
	}
}

func TestReportCacheRoundTrip(t *testing.T) {
	cache, _ := newCacheForTest(t)
	ctx := context.Background()
	f := cacheFilter(1)

	_, ok := cache.GetCashbook(ctx, f)
	assert.False(t, ok, "cold cache must miss")

	book := reports.Cashbook{}
	book.OpeningBalance = dec("1000")
	book.GrandTotal = dec("1800")
	cache.SetCashbook(ctx, f, book)

	got, ok := cache.GetCashbook(ctx, f)
	require.True(t, ok)
	assert.True(t, got.OpeningBalance.Equal(dec("1000")))
	assert.True(t, got.GrandTotal.Equal(dec("1800")))
}

func TestReportCacheInvalidate(t *testing.T) {
	cache, _ := newCacheForTest(t)
	ctx := context.Background()
	f := cacheFilter(1)

	cache.SetCashbook(ctx, f, reports.Cashbook{GrandTotal: dec("500")})
	_, ok := cache.GetCashbook(ctx, f)
	require.True(t, ok)

	cache.Invalidate(ctx, f.TenantID, f.SessionID)
	_, ok = cache.GetCashbook(ctx, f)
	assert.False(t, ok, "version bump must hide stale entries")

	// Other tenants keep their entries.
	other := cacheFilter(2)
	cache.SetCashbook(ctx, other, reports.Cashbook{GrandTotal: dec("77")})
	cache.Invalidate(ctx, f.TenantID, f.SessionID)
	_, ok = cache.GetCashbook(ctx, other)
	assert.True(t, ok)
}

func TestReportCacheSurvivesBackendLoss(t *testing.T) {
	cache, mr := newCacheForTest(t)
	ctx := context.Background()
	f := cacheFilter(1)

	mr.Close()
	cache.SetCashbook(ctx, f, reports.Cashbook{GrandTotal: dec("500")})
	_, ok := cache.GetCashbook(ctx, f)
	assert.False(t, ok, "backend loss is a miss, never an error")
}
