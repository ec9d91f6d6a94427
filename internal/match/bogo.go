package match

import (
	"errors"
	"fmt"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// matchBOGO partitions eligible quantity into buy+get groups. Each full group
// becomes one match so the resolver can accept or drop groups independently.
// A remainder that cannot fill a whole group is left untouched.
func matchBOGO(def *promo.Definition, snap *promo.Snapshot) ([]promo.Match, error) {
	p := def.BOGO
	if p == nil || p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
		return nil, nil
	}

	buyLines := scopeLines(def, snap)
	if len(buyLines) == 0 {
		return nil, nil
	}

	getLines := buyLines
	samePool := true
	if p.GetProductID != nil || p.GetCategoryID != nil {
		samePool = false
		getScope := promo.Scope{ProductID: p.GetProductID, CategoryID: p.GetCategoryID}
		getLines = nil
		for _, l := range snap.Lines() {
			if getScope.Matches(l) {
				getLines = append(getLines, l)
			}
		}
		if len(getLines) == 0 {
			return nil, nil
		}
	}
	if p.CheapestFree {
		getLines = cheapestFirst(getLines)
	}

	avail := snap.NewAvailability()
	limit := maxApplications(p.MaxApplications)

	var matches []promo.Match
	for len(matches) < limit {
		if samePool {
			if unclaimedTotal(avail, buyLines) < p.BuyQuantity+p.GetQuantity {
				break
			}
		} else if unclaimedTotal(avail, buyLines) < p.BuyQuantity || unclaimedTotal(avail, getLines) < p.GetQuantity {
			break
		}

		// Get units are claimed first so the cheapest-free selection sees the
		// full unclaimed pool.
		getClaims, err := takeUnits(avail, getLines, p.GetQuantity)
		if errors.Is(err, errShortUnits) {
			// Buy and get pools overlap; the remainder cannot fill a group.
			break
		}
		if err != nil {
			return nil, err
		}
		buyClaims, err := takeUnits(avail, buyLines, p.BuyQuantity)
		if errors.Is(err, errShortUnits) {
			break
		}
		if err != nil {
			return nil, err
		}

		m := promo.Match{Def: def, Applications: 1, Discount: money.Zero}
		m.Claims = append(m.Claims, getClaims...)
		m.Claims = append(m.Claims, buyClaims...)
		for _, c := range getClaims {
			line, ok := snap.Line(c.LineID)
			if !ok {
				return nil, fmt.Errorf("%w: get claim on unknown line %d", promo.ErrInvariant, c.LineID)
			}
			amount := money.Percent(money.MulQty(line.UnitPrice, c.Quantity), p.GetDiscountPercent)
			m.Allocations = append(m.Allocations, promo.Allocation{
				PromotionID: def.ID,
				LineID:      c.LineID,
				Quantity:    c.Quantity,
				Amount:      amount,
			})
			m.Discount = m.Discount.Add(amount)
		}
		matches = append(matches, m)
	}
	return matches, nil
}
