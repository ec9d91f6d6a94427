// Package stack turns the full set of candidate matches into one
// non-conflicting assignment of discounts to cart quantity.
package stack

import (
	"fmt"
	"sort"

	"github.com/mn-ibiz/promo-engine/internal/match"
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Result is the resolver's output: accepted matches with final allocations
// (coupons last), plus diagnostics for everything that lost out.
type Result struct {
	Accepted []promo.Match
	Dropped  []promo.Dropped
	// RejectedCoupons lists coupons that validated but had nothing left to
	// discount after resolution.
	RejectedCoupons []promo.RejectedCoupon
}

// lineState tracks what the accepted matches have done to one line.
type lineState struct {
	claimedBy []claimant
	discount  money.Amount
}

type claimant struct {
	defID      [16]byte
	stackClass string
}

// Resolve orders candidate matches by priority, discount, then promotion id,
// greedily accepts them against shrinking availability, and applies coupon
// matches last against the remaining subtotal. Allocations are clamped so no
// line's cumulative discount exceeds its subtotal.
func Resolve(snap *promo.Snapshot, matches []promo.Match) (Result, error) {
	var res Result

	var lineMatches, couponMatches []promo.Match
	for _, m := range matches {
		if m.Def == nil {
			continue
		}
		if m.Def.Kind == promo.RuleCoupon {
			couponMatches = append(couponMatches, m)
		} else {
			lineMatches = append(lineMatches, m)
		}
	}
	orderMatches(lineMatches)
	orderMatches(couponMatches)

	avail := snap.NewAvailability()
	states := make([]lineState, len(snap.Lines()))
	for i := range states {
		states[i].discount = money.Zero
	}

	for _, m := range lineMatches {
		if conflicts(m, states) {
			res.Dropped = append(res.Dropped, promo.Dropped{PromotionID: m.Def.ID, Reason: promo.DropConflict})
			continue
		}
		if !avail.CanTake(m.Claims) {
			res.Dropped = append(res.Dropped, promo.Dropped{PromotionID: m.Def.ID, Reason: promo.DropConflict})
			continue
		}

		adjusted, err := clampAllocations(m, snap, states)
		if err != nil {
			return Result{}, err
		}

		for _, c := range m.Claims {
			if err := avail.Take(c.LineID, c.Quantity); err != nil {
				return Result{}, err
			}
			states[c.LineID].claimedBy = append(states[c.LineID].claimedBy, claimant{
				defID:      m.Def.ID,
				stackClass: m.Def.StackClass,
			})
		}
		for _, a := range adjusted.Allocations {
			states[a.LineID].discount = states[a.LineID].discount.Add(a.Amount)
		}
		res.Accepted = append(res.Accepted, adjusted)
	}

	for _, m := range couponMatches {
		resolved, rejected, err := resolveCoupon(m, snap, states)
		if err != nil {
			return Result{}, err
		}
		if rejected != nil {
			res.RejectedCoupons = append(res.RejectedCoupons, *rejected)
			continue
		}
		for _, a := range resolved.Allocations {
			states[a.LineID].discount = states[a.LineID].discount.Add(a.Amount)
		}
		res.Accepted = append(res.Accepted, resolved)
	}

	return res, nil
}

// orderMatches sorts by priority descending, discount descending, promotion
// id ascending. The original slice order is the final tie-break so repeated
// runs stay byte-identical.
func orderMatches(ms []promo.Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Def.Priority != b.Def.Priority {
			return a.Def.Priority > b.Def.Priority
		}
		if !a.Discount.Equal(b.Discount) {
			return a.Discount.GreaterThan(b.Discount)
		}
		return uuidLess(a.Def.ID, b.Def.ID)
	})
}

// conflicts reports whether the match touches a line already claimed by an
// incompatible promotion. A promotion never conflicts with its own matches;
// distinct promotions co-apply only when they share a non-empty stack class.
func conflicts(m promo.Match, states []lineState) bool {
	for _, c := range m.Claims {
		if c.LineID < 0 || c.LineID >= len(states) {
			return true
		}
		for _, holder := range states[c.LineID].claimedBy {
			if holder.defID == [16]byte(m.Def.ID) {
				continue
			}
			if m.Def.StackClass != "" && m.Def.StackClass == holder.stackClass {
				continue
			}
			return true
		}
	}
	return false
}

// clampAllocations caps each allocation at what the line has left. An
// allocation exceeding the line's full subtotal on its own is a calculator
// defect and aborts the pass.
func clampAllocations(m promo.Match, snap *promo.Snapshot, states []lineState) (promo.Match, error) {
	out := m
	out.Allocations = make([]promo.Allocation, 0, len(m.Allocations))
	out.Discount = money.Zero
	for _, a := range m.Allocations {
		line, ok := snap.Line(a.LineID)
		if !ok {
			return promo.Match{}, fmt.Errorf("%w: allocation on unknown line %d", promo.ErrInvariant, a.LineID)
		}
		if a.Amount.GreaterThan(line.Subtotal()) {
			return promo.Match{}, fmt.Errorf("%w: allocation %s exceeds line %d subtotal %s",
				promo.ErrInvariant, a.Amount, a.LineID, line.Subtotal())
		}
		remaining := money.ClampZero(line.Subtotal().Sub(states[a.LineID].discount))
		a.Amount = money.Min(a.Amount, remaining)
		out.Allocations = append(out.Allocations, a)
		out.Discount = out.Discount.Add(a.Amount)
	}
	return out, nil
}

// resolveCoupon recomputes the coupon amount against the remaining scoped
// subtotal (or the pre-discount subtotal when configured) and spreads it
// pro-rata across the scoped lines by their remaining value.
func resolveCoupon(m promo.Match, snap *promo.Snapshot, states []lineState) (promo.Match, *promo.RejectedCoupon, error) {
	c := m.Def.Coupon
	if c == nil {
		return promo.Match{}, nil, fmt.Errorf("%w: coupon match without coupon params", promo.ErrInvariant)
	}

	var scoped []promo.CartLine
	base := money.Zero
	remainders := make(map[int]money.Amount)
	for _, l := range snap.Lines() {
		if c.CategoryID != nil && l.CategoryID != *c.CategoryID {
			continue
		}
		scoped = append(scoped, l)
		remainder := money.ClampZero(l.Subtotal().Sub(states[l.ID].discount))
		remainders[l.ID] = remainder
		if c.AppliesPreDiscount {
			base = base.Add(l.Subtotal())
		} else {
			base = base.Add(remainder)
		}
	}

	discount := match.CouponDiscount(c, base)
	// Regardless of the configured base, the coupon can only reduce what is
	// actually left on the scoped lines.
	headroom := money.Zero
	for _, l := range scoped {
		headroom = headroom.Add(remainders[l.ID])
	}
	discount = money.Min(discount, headroom)
	if !discount.IsPositive() {
		return promo.Match{}, &promo.RejectedCoupon{Code: c.Code, Reason: promo.ReasonNoEligibleItems}, nil
	}

	weights := make([]money.Amount, len(scoped))
	for i, l := range scoped {
		weights[i] = remainders[l.ID]
	}
	shares := money.SplitProRata(discount, weights)

	out := m
	out.Discount = money.Zero
	out.Allocations = nil
	for i, l := range scoped {
		share := money.Min(shares[i], remainders[l.ID])
		if !share.IsPositive() {
			continue
		}
		out.Allocations = append(out.Allocations, promo.Allocation{
			PromotionID: m.Def.ID,
			LineID:      l.ID,
			Quantity:    l.Quantity,
			Amount:      share,
		})
		out.Discount = out.Discount.Add(share)
	}
	return out, nil, nil
}

func uuidLess(a, b [16]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
