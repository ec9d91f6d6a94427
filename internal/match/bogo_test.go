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

var (
	productA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	productB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	productC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	drinks   = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

	evalTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func window() (time.Time, time.Time) {
	return evalTime.Add(-time.Hour), evalTime.Add(time.Hour)
}

func line(product, category uuid.UUID, qty int, price string) promo.CartLine {
	return promo.CartLine{
		ProductID:  product,
		CategoryID: category,
		Quantity:   qty,
		UnitPrice:  money.MustFromString(price),
	}
}

func TestBOGOBuyTwoGetOneFree(t *testing.T) {
	starts, ends := window()
	def := &promo.Definition{
		ID:       uuid.New(),
		Priority: 10,
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{ProductID: &productA},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetDiscountPercent: money.FromInt(100),
		},
	}
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 3, "100.00")})

	matches, err := match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Discount.Equal(money.MustFromString("100.00")),
		"one free unit worth 100, got %s", matches[0].Discount)

	claimed := 0
	for _, c := range matches[0].Claims {
		claimed += c.Quantity
	}
	require.Equal(t, 3, claimed, "all 3 units consumed, none left unmatched")
}

func TestBOGOCheapestFreeAcrossCategory(t *testing.T) {
	starts, ends := window()
	def := &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{CategoryID: &drinks},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetDiscountPercent: money.FromInt(100),
			CheapestFree:       true,
		},
	}
	snap := promo.NewSnapshot([]promo.CartLine{
		line(productA, drinks, 1, "50.00"),
		line(productB, drinks, 1, "80.00"),
		line(productC, drinks, 1, "120.00"),
	})

	matches, err := match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Discount.Equal(money.MustFromString("50.00")),
		"cheapest drink free, got %s", matches[0].Discount)
	require.Len(t, matches[0].Allocations, 1)
	require.Equal(t, 0, matches[0].Allocations[0].LineID, "discount lands on the 50.00 line")
}

func TestBOGOPartialRemainderLeftUntouched(t *testing.T) {
	starts, ends := window()
	def := &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{ProductID: &productA},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetDiscountPercent: money.FromInt(100),
		},
	}
	// 5 units form one full group of 3; the remaining 2 stay at full price.
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 5, "10.00")})

	matches, err := match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	claimed := 0
	for _, c := range matches[0].Claims {
		claimed += c.Quantity
	}
	require.Equal(t, 3, claimed)
}

func TestBOGOMaxApplicationsCapsGroups(t *testing.T) {
	starts, ends := window()
	capApps := 1
	def := &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{ProductID: &productA},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        1,
			GetQuantity:        1,
			GetDiscountPercent: money.FromInt(50),
			MaxApplications:    &capApps,
		},
	}
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 6, "20.00")})

	matches, err := match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Len(t, matches, 1, "cap of one application despite three possible groups")
	require.True(t, matches[0].Discount.Equal(money.MustFromString("10.00")))
}

func TestBOGOOutsideWindowYieldsNoMatch(t *testing.T) {
	starts, ends := window()
	def := &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{ProductID: &productA},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetDiscountPercent: money.FromInt(100),
		},
	}
	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 3, "100.00")})

	// The window end is exclusive.
	matches, err := match.Matches(def, snap, match.Context{Now: ends})
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestBOGOGetScopeOverlappingBuyScope(t *testing.T) {
	// GetCategoryID equal to the scope category makes buy and get draw from
	// the same units; too few units must yield no match, not an error.
	starts, ends := window()
	def := &promo.Definition{
		ID:       uuid.New(),
		StartsAt: starts,
		EndsAt:   ends,
		Scope:    promo.Scope{CategoryID: &drinks},
		Kind:     promo.RuleBOGO,
		BOGO: &promo.BOGOParams{
			BuyQuantity:        2,
			GetQuantity:        1,
			GetCategoryID:      &drinks,
			GetDiscountPercent: money.FromInt(100),
		},
	}

	snap := promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 2, "10.00")})
	matches, err := match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Empty(t, matches)

	snap = promo.NewSnapshot([]promo.CartLine{line(productA, drinks, 3, "10.00")})
	matches, err = match.Matches(def, snap, match.Context{Now: evalTime})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Discount.Equal(money.MustFromString("10.00")),
		"got %s", matches[0].Discount)
}
