package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newCached(t *testing.T) (*Cached, *Memory) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := NewMemory()
	return &Cached{Inner: inner, Client: client, TTL: time.Minute, Logger: zerolog.Nop()}, inner
}

func TestCachedActivePromotionsReadThrough(t *testing.T) {
	cached, inner := newCached(t)
	ctx := context.Background()
	def := sampleBOGO("30000000-0000-0000-0000-000000000001")
	require.NoError(t, inner.Upsert(ctx, def))

	defs, err := cached.ActivePromotions(ctx, evalTime)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	// A write bypassing the cache is not seen until invalidation.
	require.NoError(t, inner.Delete(ctx, def.ID))
	defs, err = cached.ActivePromotions(ctx, evalTime)
	require.NoError(t, err)
	require.Len(t, defs, 1)
}

func TestCachedUpsertInvalidates(t *testing.T) {
	cached, _ := newCached(t)
	ctx := context.Background()

	def := sampleBOGO("30000000-0000-0000-0000-000000000002")
	require.NoError(t, cached.Upsert(ctx, def))

	defs, err := cached.ActivePromotions(ctx, evalTime)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	renamed := def
	renamed.Name = "renamed"
	require.NoError(t, cached.Upsert(ctx, renamed))

	defs, err = cached.ActivePromotions(ctx, evalTime)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "renamed", defs[0].Name)
}

func TestCachedCouponLookupCachesMisses(t *testing.T) {
	cached, inner := newCached(t)
	ctx := context.Background()

	missing, err := cached.CouponByCode(ctx, "LATER")
	require.NoError(t, err)
	require.Nil(t, missing)

	// The miss is cached until the coupon's own key is invalidated.
	coupon := sampleCoupon("30000000-0000-0000-0000-000000000003", "LATER")
	require.NoError(t, inner.Upsert(ctx, coupon))
	still, err := cached.CouponByCode(ctx, "LATER")
	require.NoError(t, err)
	require.Nil(t, still)

	require.NoError(t, cached.Upsert(ctx, coupon))
	found, err := cached.CouponByCode(ctx, "LATER")
	require.NoError(t, err)
	require.NotNil(t, found)
}
