// Package record assembles the final, auditable result of a pricing pass.
// It performs no I/O and is deterministic given its inputs.
package record

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Finalize verifies the conservation invariants and produces the
// PricingResult handed to the receipt and persistence layers. A breach of
// either invariant aborts the pass with promo.ErrInvariant: no sale may
// complete on top of an inconsistent discount computation.
func Finalize(
	transactionID string,
	snap *promo.Snapshot,
	accepted []promo.Match,
	rejected []promo.RejectedCoupon,
	dropped []promo.Dropped,
) (promo.PricingResult, error) {
	lines := snap.Lines()
	lineDiscount := make([]money.Amount, len(lines))
	lineClaimed := make([]int, len(lines))
	for i := range lineDiscount {
		lineDiscount[i] = money.Zero
	}

	for _, m := range accepted {
		if m.Def.Kind != promo.RuleCoupon {
			for _, c := range m.Claims {
				if c.LineID < 0 || c.LineID >= len(lines) {
					return promo.PricingResult{}, fmt.Errorf("%w: claim on unknown line %d", promo.ErrInvariant, c.LineID)
				}
				lineClaimed[c.LineID] += c.Quantity
			}
		}
		for _, a := range m.Allocations {
			if a.LineID < 0 || a.LineID >= len(lines) {
				return promo.PricingResult{}, fmt.Errorf("%w: allocation on unknown line %d", promo.ErrInvariant, a.LineID)
			}
			lineDiscount[a.LineID] = lineDiscount[a.LineID].Add(a.Amount)
		}
	}

	for i, l := range lines {
		if lineClaimed[i] > l.Quantity {
			return promo.PricingResult{}, fmt.Errorf("%w: line %d claimed %d of %d units",
				promo.ErrInvariant, i, lineClaimed[i], l.Quantity)
		}
		if lineDiscount[i].GreaterThan(l.Subtotal()) {
			return promo.PricingResult{}, fmt.Errorf("%w: line %d discount %s exceeds subtotal %s",
				promo.ErrInvariant, i, lineDiscount[i], l.Subtotal())
		}
	}

	result := promo.PricingResult{
		TransactionID:   transactionID,
		Subtotal:        snap.Subtotal(),
		TotalDiscount:   money.Zero,
		RejectedCoupons: rejected,
		Diagnostics:     dropped,
	}
	for i, l := range lines {
		result.TotalDiscount = result.TotalDiscount.Add(lineDiscount[i])
		result.Lines = append(result.Lines, promo.LineResult{
			LineID:    l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
			Discount:  lineDiscount[i],
			Net:       l.Subtotal().Sub(lineDiscount[i]),
		})
	}
	result.Total = result.Subtotal.Sub(result.TotalDiscount)
	result.Applications = aggregate(accepted)
	return result, nil
}

// aggregate folds per-match results into one entry per promotion, keeping
// first-seen order so the output is stable.
func aggregate(accepted []promo.Match) []promo.AppliedPromotion {
	index := make(map[uuid.UUID]int)
	var out []promo.AppliedPromotion
	for _, m := range accepted {
		i, ok := index[m.Def.ID]
		if !ok {
			i = len(out)
			index[m.Def.ID] = i
			entry := promo.AppliedPromotion{
				PromotionID: m.Def.ID,
				Name:        m.Def.Name,
				Kind:        m.Def.Kind,
				Discount:    money.Zero,
			}
			if m.Def.Coupon != nil {
				entry.CouponCode = m.Def.Coupon.Code
			}
			out = append(out, entry)
		}
		out[i].Discount = out[i].Discount.Add(m.Discount)
		out[i].Applications += m.Applications
		out[i].Lines = append(out[i].Lines, m.Allocations...)
	}
	return out
}
