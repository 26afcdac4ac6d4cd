package di

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/pkg/observability"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	collector := observability.NewCollector("test")
	cache := NewInMemoryCache(collector)
	defer cache.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	caseA := ports.CaseCacheKeyPrefix("case-a")
	_ = cache.Set(ctx, caseA+"driver-1", "view-1", 30)
	_ = cache.Set(ctx, caseA+"admin-1", "view-2", 30)
	_ = cache.Set(ctx, ports.CaseCacheKeyPrefix("case-b")+"driver-1", "view-3", 30)

	v, ok := cache.Get(ctx, caseA+"driver-1")
	assert.True(t, ok)
	assert.Equal(t, "view-1", v)

	t.Run("prefix delete only drops one case", func(t *testing.T) {
		_ = cache.DeletePrefix(ctx, caseA)
		_, ok := cache.Get(ctx, caseA+"admin-1")
		assert.False(t, ok)
		_, ok = cache.Get(ctx, ports.CaseCacheKeyPrefix("case-b")+"driver-1")
		assert.True(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		now = now.Add(31 * time.Second)
		_, ok := cache.Get(ctx, ports.CaseCacheKeyPrefix("case-b")+"driver-1")
		assert.False(t, ok)
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.CacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.CacheMisses))
}
