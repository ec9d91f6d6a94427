package match_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/match"
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

func couponDef(c promo.CouponParams) *promo.Definition {
	starts, ends := window()
	return &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Kind:     promo.RuleCoupon,
		Coupon:   &c,
	}
}

func TestCouponMinimumPurchaseRejected(t *testing.T) {
	pct := money.FromInt(10)
	def := couponDef(promo.CouponParams{
		Code:            "SAVE10",
		Active:          true,
		DiscountPercent: &pct,
		MinPurchase:     money.MustFromString("1000.00"),
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 4, "200.00")})

	m, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.Nil(t, m)
	require.NotNil(t, rejected)
	require.Equal(t, "SAVE10", rejected.Code)
	require.Equal(t, promo.ReasonMinimumPurchaseUnMet, rejected.Reason)
}

func TestCouponExpired(t *testing.T) {
	pct := money.FromInt(10)
	expired := evalTime.Add(-time.Minute)
	def := couponDef(promo.CouponParams{
		Code:            "OLD",
		Active:          true,
		DiscountPercent: &pct,
		ValidTo:         &expired,
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 1, "50.00")})

	_, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.NotNil(t, rejected)
	require.Equal(t, promo.ReasonCouponExpired, rejected.Reason)
}

func TestCouponUseLimitExhausted(t *testing.T) {
	pct := money.FromInt(10)
	maxUses := 3
	def := couponDef(promo.CouponParams{
		Code:            "LIMITED",
		Active:          true,
		DiscountPercent: &pct,
		MaxUses:         &maxUses,
		UsedCount:       3,
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 1, "50.00")})

	_, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.NotNil(t, rejected)
	require.Equal(t, promo.ReasonUsageLimitReached, rejected.Reason)
}

func TestCouponCustomerBinding(t *testing.T) {
	pct := money.FromInt(10)
	owner := uuid.New()
	stranger := uuid.New()
	def := couponDef(promo.CouponParams{
		Code:            "MINE",
		Active:          true,
		DiscountPercent: &pct,
		CustomerID:      &owner,
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 1, "50.00")})

	_, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime, CustomerID: &stranger})
	require.NotNil(t, rejected)
	require.Equal(t, promo.ReasonCustomerMismatch, rejected.Reason)

	m, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime, CustomerID: &owner})
	require.Nil(t, rejected)
	require.NotNil(t, m)
}

func TestCouponPercentWithCap(t *testing.T) {
	pct := money.FromInt(50)
	capAmount := money.MustFromString("30.00")
	def := couponDef(promo.CouponParams{
		Code:            "HALF",
		Active:          true,
		DiscountPercent: &pct,
		MaxDiscount:     &capAmount,
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 1, "100.00")})

	m, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.Nil(t, rejected)
	require.NotNil(t, m)
	require.True(t, m.Discount.Equal(capAmount), "50%% of 100 capped at 30, got %s", m.Discount)
}

func TestCouponCategoryScope(t *testing.T) {
	amount := money.MustFromString("20.00")
	def := couponDef(promo.CouponParams{
		Code:           "DRINKS20",
		Active:         true,
		DiscountAmount: &amount,
		CategoryID:     &drinks,
	})
	other := uuid.New()
	snap := promo.NewSnapshot([]promo.CartLine{
		line(productA, drinks, 1, "15.00"),
		line(productB, other, 1, "500.00"),
	})

	m, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.Nil(t, rejected)
	require.NotNil(t, m)
	// Fixed 20.00 capped at the 15.00 scoped subtotal.
	require.True(t, m.Discount.Equal(money.MustFromString("15.00")))
}

func TestCouponVoidedBeatsInactive(t *testing.T) {
	pct := money.FromInt(10)
	def := couponDef(promo.CouponParams{
		Code:            "GONE",
		Active:          false,
		Voided:          true,
		DiscountPercent: &pct,
	})
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 1, "50.00")})

	_, rejected := match.MatchCoupon(def, snap, match.Context{Now: evalTime})
	require.NotNil(t, rejected)
	require.Equal(t, promo.ReasonCouponVoided, rejected.Reason)
}
