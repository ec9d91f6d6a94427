package match

import (
	"errors"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// matchMixMatch evaluates bundle rules. For the fixed-bundle and percent-off
// modes the qualifying pool is the union of all group members and units are
// claimed dearest first, which maximizes customer benefit when the bundle
// charges a fixed total. Cross-group rules claim qualifying units at full
// price and discount reward units.
func matchMixMatch(def *promo.Definition, snap *promo.Snapshot) ([]promo.Match, error) {
	p := def.MixMatch
	if p == nil || len(p.Groups) == 0 {
		return nil, nil
	}
	if p.Pricing == promo.PricingCrossGroup {
		return matchCrossGroup(def, snap)
	}
	if p.RequiredQuantity <= 0 {
		return nil, nil
	}

	pool := groupUnion(p.Groups, snap)
	if len(pool) == 0 {
		return nil, nil
	}
	pool = dearestFirst(pool)

	avail := snap.NewAvailability()
	limit := maxApplications(p.MaxApplications)

	var matches []promo.Match
	for len(matches) < limit && unclaimedTotal(avail, pool) >= p.RequiredQuantity {
		claims, err := takeUnits(avail, pool, p.RequiredQuantity)
		if errors.Is(err, errShortUnits) {
			break
		}
		if err != nil {
			return nil, err
		}

		claimedTotal := money.Zero
		weights := make([]money.Amount, len(claims))
		for i, c := range claims {
			line, _ := snap.Line(c.LineID)
			weights[i] = money.MulQty(line.UnitPrice, c.Quantity)
			claimedTotal = claimedTotal.Add(weights[i])
		}

		var discount money.Amount
		switch p.Pricing {
		case promo.PricingFixedBundle:
			if p.BundlePrice == nil {
				return nil, nil
			}
			discount = money.ClampZero(claimedTotal.Sub(*p.BundlePrice))
		case promo.PricingPercentOff:
			if p.DiscountPercent == nil {
				return nil, nil
			}
			discount = money.Percent(claimedTotal, *p.DiscountPercent)
		default:
			return nil, nil
		}
		if discount.IsZero() {
			break
		}

		m := promo.Match{Def: def, Claims: claims, Discount: discount, Applications: 1}
		shares := money.SplitProRata(discount, weights)
		for i, c := range claims {
			m.Allocations = append(m.Allocations, promo.Allocation{
				PromotionID: def.ID,
				LineID:      c.LineID,
				Quantity:    c.Quantity,
				Amount:      shares[i],
			})
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// matchCrossGroup requires every qualifying group minimum and the reward
// minimum to be simultaneously satisfiable from unclaimed quantity. Reward
// units are discounted dearest first, up to the reward group maximum when
// one is set.
func matchCrossGroup(def *promo.Definition, snap *promo.Snapshot) ([]promo.Match, error) {
	p := def.MixMatch
	if p.DiscountPercent == nil {
		return nil, nil
	}

	var qualifying, reward []promo.MixMatchGroup
	for _, g := range p.Groups {
		if g.Role == promo.GroupReward {
			reward = append(reward, g)
		} else {
			qualifying = append(qualifying, g)
		}
	}
	if len(qualifying) == 0 || len(reward) == 0 {
		return nil, nil
	}

	avail := snap.NewAvailability()
	limit := maxApplications(p.MaxApplications)

	var matches []promo.Match
forming:
	for len(matches) < limit {
		feasible := true
		for _, g := range qualifying {
			if unclaimedTotal(avail, groupLines(g, snap)) < g.MinQuantity {
				feasible = false
				break
			}
		}
		for _, g := range reward {
			if unclaimedTotal(avail, groupLines(g, snap)) < g.MinQuantity {
				feasible = false
				break
			}
		}
		if !feasible {
			break
		}

		m := promo.Match{Def: def, Applications: 1, Discount: money.Zero}

		for _, g := range qualifying {
			claims, err := takeUnits(avail, groupLines(g, snap), g.MinQuantity)
			if errors.Is(err, errShortUnits) {
				// Groups share lines, so the per-group checks above can pass
				// on fewer units than the group set needs together.
				break forming
			}
			if err != nil {
				return nil, err
			}
			m.Claims = append(m.Claims, claims...)
		}

		for _, g := range reward {
			lines := dearestFirst(groupLines(g, snap))
			qty := unclaimedTotal(avail, lines)
			if g.MaxQuantity != nil && qty > *g.MaxQuantity {
				qty = *g.MaxQuantity
			}
			if qty < g.MinQuantity {
				qty = g.MinQuantity
			}
			claims, err := takeUnits(avail, lines, qty)
			if errors.Is(err, errShortUnits) {
				break forming
			}
			if err != nil {
				return nil, err
			}
			m.Claims = append(m.Claims, claims...)
			for _, c := range claims {
				line, _ := snap.Line(c.LineID)
				amount := money.Percent(money.MulQty(line.UnitPrice, c.Quantity), *p.DiscountPercent)
				m.Allocations = append(m.Allocations, promo.Allocation{
					PromotionID: def.ID,
					LineID:      c.LineID,
					Quantity:    c.Quantity,
					Amount:      amount,
				})
				m.Discount = m.Discount.Add(amount)
			}
		}
		if m.Discount.IsZero() {
			break
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func groupLines(g promo.MixMatchGroup, snap *promo.Snapshot) []promo.CartLine {
	var out []promo.CartLine
	for _, l := range snap.Lines() {
		if g.Contains(l) {
			out = append(out, l)
		}
	}
	return out
}

func groupUnion(groups []promo.MixMatchGroup, snap *promo.Snapshot) []promo.CartLine {
	var out []promo.CartLine
	for _, l := range snap.Lines() {
		for _, g := range groups {
			if g.Contains(l) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
