package record_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
	"github.com/mn-ibiz/promo-engine/internal/record"
)

var productA = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func snapshot() *promo.Snapshot {
	return promo.NewSnapshot([]promo.CartLine{{
		ProductID: productA,
		Quantity:  3,
		UnitPrice: money.MustFromString("100.00"),
	}})
}

func acceptedMatch(def *promo.Definition, qty int, discount string) promo.Match {
	amount := money.MustFromString(discount)
	return promo.Match{
		Def:          def,
		Claims:       []promo.Claim{{LineID: 0, Quantity: qty}},
		Allocations:  []promo.Allocation{{PromotionID: def.ID, LineID: 0, Quantity: qty, Amount: amount}},
		Discount:     amount,
		Applications: 1,
	}
}

func TestFinalizeTotals(t *testing.T) {
	def := &promo.Definition{ID: uuid.New(), Name: "B2G1", Kind: promo.RuleBOGO}
	snap := snapshot()

	result, err := record.Finalize("tx-1", snap, []promo.Match{acceptedMatch(def, 3, "100.00")}, nil, nil)
	require.NoError(t, err)
	require.True(t, result.Subtotal.Equal(money.MustFromString("300.00")))
	require.True(t, result.TotalDiscount.Equal(money.MustFromString("100.00")))
	require.True(t, result.Total.Equal(money.MustFromString("200.00")))
	require.Len(t, result.Applications, 1)
	require.Equal(t, 1, result.Applications[0].Applications)
	require.Len(t, result.Lines, 1)
	require.True(t, result.Lines[0].Net.Equal(money.MustFromString("200.00")))
}

func TestFinalizeAggregatesPerPromotion(t *testing.T) {
	def := &promo.Definition{ID: uuid.New(), Name: "B1G1", Kind: promo.RuleBOGO}
	snap := snapshot()

	result, err := record.Finalize("tx-1", snap, []promo.Match{
		acceptedMatch(def, 1, "10.00"),
		acceptedMatch(def, 1, "10.00"),
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Applications, 1, "matches of one promotion fold into one entry")
	require.Equal(t, 2, result.Applications[0].Applications)
	require.True(t, result.Applications[0].Discount.Equal(money.MustFromString("20.00")))
}

func TestFinalizeOverclaimedQuantityAborts(t *testing.T) {
	def := &promo.Definition{ID: uuid.New(), Kind: promo.RuleBOGO}
	snap := snapshot()

	_, err := record.Finalize("tx-1", snap, []promo.Match{acceptedMatch(def, 4, "10.00")}, nil, nil)
	require.ErrorIs(t, err, promo.ErrInvariant)
}

func TestFinalizeOverdiscountAborts(t *testing.T) {
	def := &promo.Definition{ID: uuid.New(), Kind: promo.RuleBOGO}
	snap := snapshot()

	_, err := record.Finalize("tx-1", snap, []promo.Match{acceptedMatch(def, 3, "301.00")}, nil, nil)
	require.ErrorIs(t, err, promo.ErrInvariant)
}

func TestFinalizeDeterministic(t *testing.T) {
	def := &promo.Definition{ID: uuid.New(), Name: "B2G1", Kind: promo.RuleBOGO}

	encode := func() []byte {
		snap := snapshot()
		result, err := record.Finalize("tx-1", snap, []promo.Match{acceptedMatch(def, 3, "100.00")}, nil, nil)
		require.NoError(t, err)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		return data
	}

	require.Equal(t, encode(), encode(), "identical inputs must produce byte-identical results")
}
