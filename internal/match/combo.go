package match

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// matchCombo forms one match per full set of the combo's required components.
// The required-component discount is the list-price sum minus the combo
// price, spread pro-rata by list-price share. Optional components present in
// the cart join the match priced at their add-on price.
func matchCombo(def *promo.Definition, snap *promo.Snapshot) ([]promo.Match, error) {
	p := def.Combo
	if p == nil || len(p.Components) == 0 {
		return nil, nil
	}

	avail := snap.NewAvailability()
	limit := maxApplications(p.MaxApplications)

	var matches []promo.Match
forming:
	for len(matches) < limit {
		feasible := true
		for _, comp := range p.Components {
			if comp.Optional {
				continue
			}
			if unclaimedTotal(avail, productLines(comp.ProductID, snap)) < comp.Quantity {
				feasible = false
				break
			}
		}
		if !feasible {
			break
		}

		m := promo.Match{Def: def, Applications: 1, Discount: money.Zero}

		var requiredClaims []promo.Claim
		listTotal := money.Zero
		for _, comp := range p.Components {
			if comp.Optional {
				continue
			}
			claims, err := takeUnits(avail, productLines(comp.ProductID, snap), comp.Quantity)
			if errors.Is(err, errShortUnits) {
				// Components repeating a product can over-count the same
				// lines in the per-component checks above.
				break forming
			}
			if err != nil {
				return nil, err
			}
			requiredClaims = append(requiredClaims, claims...)
			for _, c := range claims {
				line, _ := snap.Line(c.LineID)
				listTotal = listTotal.Add(money.MulQty(line.UnitPrice, c.Quantity))
			}
		}
		m.Claims = append(m.Claims, requiredClaims...)

		discount := money.ClampZero(listTotal.Sub(p.ComboPrice))
		weights := make([]money.Amount, len(requiredClaims))
		for i, c := range requiredClaims {
			line, _ := snap.Line(c.LineID)
			weights[i] = money.MulQty(line.UnitPrice, c.Quantity)
		}
		shares := money.SplitProRata(discount, weights)
		for i, c := range requiredClaims {
			m.Allocations = append(m.Allocations, promo.Allocation{
				PromotionID: def.ID,
				LineID:      c.LineID,
				Quantity:    c.Quantity,
				Amount:      shares[i],
			})
		}
		m.Discount = discount

		// Optional components swap list price for the configured add-on price.
		for _, comp := range p.Components {
			if !comp.Optional || comp.AddOnPrice == nil {
				continue
			}
			lines := productLines(comp.ProductID, snap)
			have := unclaimedTotal(avail, lines)
			if have == 0 {
				continue
			}
			qty := comp.Quantity
			if have < qty {
				qty = have
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
				perUnit := money.ClampZero(line.UnitPrice.Sub(*comp.AddOnPrice))
				amount := money.MulQty(perUnit, c.Quantity)
				if amount.IsZero() {
					continue
				}
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

func productLines(productID uuid.UUID, snap *promo.Snapshot) []promo.CartLine {
	var out []promo.CartLine
	for _, l := range snap.Lines() {
		if l.ProductID == productID {
			out = append(out, l)
		}
	}
	return out
}
