package match

import (
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// matchQuantityBreak finds, independently for each line in scope, the single
// highest tier whose [min, max) range covers the line quantity, and prices
// the whole line at that tier.
func matchQuantityBreak(def *promo.Definition, snap *promo.Snapshot) ([]promo.Match, error) {
	p := def.QuantityBreak
	if p == nil || len(p.Tiers) == 0 {
		return nil, nil
	}

	var matches []promo.Match
	for _, line := range scopeLines(def, snap) {
		tier, ok := bestTier(p.Tiers, line.Quantity)
		if !ok {
			continue
		}
		var discount money.Amount
		switch {
		case tier.UnitPrice != nil:
			perUnit := money.ClampZero(line.UnitPrice.Sub(*tier.UnitPrice))
			discount = money.MulQty(perUnit, line.Quantity)
		case tier.DiscountPercent != nil:
			discount = money.Percent(line.Subtotal(), *tier.DiscountPercent)
		}
		if discount.IsZero() {
			continue
		}
		matches = append(matches, promo.Match{
			Def:          def,
			Claims:       []promo.Claim{{LineID: line.ID, Quantity: line.Quantity}},
			Allocations:  []promo.Allocation{{PromotionID: def.ID, LineID: line.ID, Quantity: line.Quantity, Amount: discount}},
			Discount:     discount,
			Applications: 1,
		})
	}
	return matches, nil
}

// bestTier returns the highest tier covering qty. Tiers are configured
// non-overlapping, so the covering tier with the largest MinQuantity wins.
func bestTier(tiers []promo.QuantityTier, qty int) (promo.QuantityTier, bool) {
	var best promo.QuantityTier
	found := false
	for _, t := range tiers {
		if !t.Covers(qty) {
			continue
		}
		if !found || t.MinQuantity > best.MinQuantity {
			best = t
			found = true
		}
	}
	return best, found
}
