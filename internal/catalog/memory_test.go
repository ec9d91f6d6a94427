package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

var evalTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleBOGO(id string) promo.Definition {
	return promo.Definition{
		ID:       uuid.MustParse(id),
		Name:     "sample",
		StartsAt: evalTime.Add(-time.Hour),
		EndsAt:   evalTime.Add(time.Hour),
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        1,
			GetQuantity:        1,
			GetDiscountPercent: money.MustFromString("50"),
		},
	}
}

func sampleCoupon(id, code string) promo.Definition {
	return promo.Definition{
		ID:   uuid.MustParse(id),
		Name: "coupon " + code,
		Kind: promo.RuleCoupon,
		Coupon: &promo.CouponParams{
			Code:           code,
			DiscountAmount: amount("5.00"),
			Active:         true,
		},
	}
}

func amount(s string) *money.Amount {
	v := money.MustFromString(s)
	return &v
}

func TestMemoryActivePromotionsFiltersWindow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	active := sampleBOGO("10000000-0000-0000-0000-000000000001")
	expired := sampleBOGO("10000000-0000-0000-0000-000000000002")
	expired.EndsAt = evalTime.Add(-time.Minute)
	require.NoError(t, m.Upsert(ctx, active))
	require.NoError(t, m.Upsert(ctx, expired))

	defs, err := m.ActivePromotions(ctx, evalTime)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, active.ID, defs[0].ID)
}

func TestMemoryCouponLookupCaseInsensitive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, sampleCoupon("10000000-0000-0000-0000-000000000003", "SAVE5")))

	def, err := m.CouponByCode(ctx, "save5")
	require.NoError(t, err)
	require.NotNil(t, def)
	require.Equal(t, "SAVE5", def.Coupon.Code)

	missing, err := m.CouponByCode(ctx, "OTHER")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryRejectsDuplicateCouponCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, sampleCoupon("10000000-0000-0000-0000-000000000004", "DUP")))

	err := m.Upsert(ctx, sampleCoupon("10000000-0000-0000-0000-000000000005", "dup"))
	require.ErrorIs(t, err, ErrDuplicateCoupon)
}

func TestMemoryListPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		d := sampleBOGO("10000000-0000-0000-0000-00000000000" + string(rune('0'+i)))
		require.NoError(t, m.Upsert(ctx, d))
	}

	page, err := m.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := m.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	empty, err := m.List(ctx, 2, 5)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d := sampleBOGO("10000000-0000-0000-0000-000000000009")
	require.NoError(t, m.Upsert(ctx, d))
	require.NoError(t, m.Delete(ctx, d.ID))
	require.ErrorIs(t, m.Delete(ctx, d.ID), ErrNotFound)
	_, err := m.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
