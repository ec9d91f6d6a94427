// Package match evaluates promotion definitions against a cart snapshot and
// produces candidate matches for the stacking resolver. All evaluation is
// pure: the instant and customer context are passed in explicitly.
package match

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Context carries the evaluation instant and optional customer identity.
type Context struct {
	Now        time.Time
	CustomerID *uuid.UUID
}

// Matches evaluates one non-coupon promotion against the snapshot. A
// promotion outside its window or whose scope matches nothing yields zero
// matches, not an error. Coupons are evaluated through MatchCoupon because
// their failures are user-visible.
func Matches(def *promo.Definition, snap *promo.Snapshot, mctx Context) ([]promo.Match, error) {
	if def == nil || snap == nil {
		return nil, nil
	}
	if !def.ActiveAt(mctx.Now) {
		return nil, nil
	}
	switch def.Kind {
	case promo.RuleBOGO:
		return matchBOGO(def, snap)
	case promo.RuleMixMatch:
		return matchMixMatch(def, snap)
	case promo.RuleQuantityBreak:
		return matchQuantityBreak(def, snap)
	case promo.RuleCombo:
		return matchCombo(def, snap)
	case promo.RuleCoupon:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", def.Kind)
	}
}

// scopeLines returns the cart lines within the promotion scope, in line order.
func scopeLines(def *promo.Definition, snap *promo.Snapshot) []promo.CartLine {
	var out []promo.CartLine
	for _, l := range snap.Lines() {
		if def.Scope.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

// unclaimedTotal sums the unclaimed quantity across the given lines.
func unclaimedTotal(avail *promo.Availability, lines []promo.CartLine) int {
	total := 0
	for _, l := range lines {
		total += avail.Unclaimed(l.ID)
	}
	return total
}

// errShortUnits reports that a group attempt ran out of unclaimed units.
// This happens on valid configurations when a rule's pools overlap, so
// per-pool feasibility checks over-count the shared lines. Calculators stop
// forming groups when they see it; the cart simply does not qualify again.
var errShortUnits = errors.New("insufficient unclaimed units")

// takeUnits claims qty units from the lines in the given order, returning the
// claims made, or errShortUnits when the lines run dry first.
func takeUnits(avail *promo.Availability, lines []promo.CartLine, qty int) ([]promo.Claim, error) {
	var claims []promo.Claim
	for _, l := range lines {
		if qty == 0 {
			break
		}
		take := avail.Unclaimed(l.ID)
		if take == 0 {
			continue
		}
		if take > qty {
			take = qty
		}
		if err := avail.Take(l.ID, take); err != nil {
			return nil, err
		}
		claims = append(claims, promo.Claim{LineID: l.ID, Quantity: take})
		qty -= take
	}
	if qty > 0 {
		return nil, errShortUnits
	}
	return claims, nil
}

// cheapestFirst orders lines by ascending unit price, breaking price ties by
// lower product id, then line id.
func cheapestFirst(lines []promo.CartLine) []promo.CartLine {
	out := make([]promo.CartLine, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UnitPrice.Equal(out[j].UnitPrice) {
			return out[i].UnitPrice.LessThan(out[j].UnitPrice)
		}
		if out[i].ProductID != out[j].ProductID {
			return uuidLess(out[i].ProductID, out[j].ProductID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// dearestFirst orders lines by descending unit price, breaking ties by lower
// product id, then line id.
func dearestFirst(lines []promo.CartLine) []promo.CartLine {
	out := make([]promo.CartLine, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UnitPrice.Equal(out[j].UnitPrice) {
			return out[i].UnitPrice.GreaterThan(out[j].UnitPrice)
		}
		if out[i].ProductID != out[j].ProductID {
			return uuidLess(out[i].ProductID, out[j].ProductID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func uuidLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func maxApplications(cap *int) int {
	if cap == nil || *cap <= 0 {
		return int(^uint(0) >> 1)
	}
	return *cap
}
