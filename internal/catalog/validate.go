package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

func hundred() money.Amount { return money.FromInt(100) }

// ValidateDefinition rejects definitions the engine could not evaluate
// soundly. It runs on every admin write; the engine trusts stored
// definitions on the hot path.
func ValidateDefinition(def promo.Definition) error {
	if def.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("name is required")
	}
	if !def.EndsAt.IsZero() && !def.EndsAt.After(def.StartsAt) {
		return errors.New("window end must be after start")
	}
	if def.Budget != nil && *def.Budget <= 0 {
		return errors.New("budget must be positive")
	}
	switch def.Kind {
	case promo.RuleBOGO:
		return validateBOGO(def.BOGO)
	case promo.RuleMixMatch:
		return validateMixMatch(def.MixMatch)
	case promo.RuleQuantityBreak:
		return validateQuantityBreak(def.QuantityBreak)
	case promo.RuleCombo:
		return validateCombo(def.Combo)
	case promo.RuleCoupon:
		return validateCouponParams(def.Coupon)
	default:
		return fmt.Errorf("unknown rule kind %q", def.Kind)
	}
}

func validateBOGO(p *promo.BOGOParams) error {
	if p == nil {
		return errors.New("bogo parameters are required")
	}
	if p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
		return errors.New("buy and get quantities must be positive")
	}
	if p.GetDiscountPercent.IsNegative() || p.GetDiscountPercent.GreaterThan(hundred()) {
		return errors.New("get discount percent must be between 0 and 100")
	}
	if p.MaxApplications != nil && *p.MaxApplications <= 0 {
		return errors.New("max applications must be positive")
	}
	return nil
}

func validateMixMatch(p *promo.MixMatchParams) error {
	if p == nil {
		return errors.New("mix-and-match parameters are required")
	}
	if len(p.Groups) == 0 {
		return errors.New("at least one group is required")
	}
	for i, g := range p.Groups {
		if len(g.ProductIDs) == 0 && len(g.CategoryIDs) == 0 {
			return fmt.Errorf("group %d has no product or category references", i)
		}
		if g.MinQuantity < 0 {
			return fmt.Errorf("group %d has negative minimum quantity", i)
		}
		if g.MaxQuantity != nil && *g.MaxQuantity < g.MinQuantity {
			return fmt.Errorf("group %d maximum is below its minimum", i)
		}
	}
	switch p.Pricing {
	case promo.PricingFixedBundle:
		if p.RequiredQuantity <= 0 {
			return errors.New("required quantity must be positive")
		}
		if p.BundlePrice == nil || p.BundlePrice.IsNegative() {
			return errors.New("bundle price is required")
		}
	case promo.PricingPercentOff:
		if p.RequiredQuantity <= 0 {
			return errors.New("required quantity must be positive")
		}
		if p.DiscountPercent == nil || p.DiscountPercent.IsNegative() || p.DiscountPercent.GreaterThan(hundred()) {
			return errors.New("discount percent must be between 0 and 100")
		}
	case promo.PricingCrossGroup:
		if p.DiscountPercent == nil || p.DiscountPercent.IsNegative() || p.DiscountPercent.GreaterThan(hundred()) {
			return errors.New("discount percent must be between 0 and 100")
		}
		var qualifying, reward int
		for _, g := range p.Groups {
			switch g.Role {
			case promo.GroupQualifying:
				qualifying++
			case promo.GroupReward:
				reward++
			}
		}
		if qualifying == 0 || reward == 0 {
			return errors.New("cross-group pricing needs a qualifying and a reward group")
		}
	default:
		return fmt.Errorf("unknown pricing mode %q", p.Pricing)
	}
	return nil
}

func validateQuantityBreak(p *promo.QuantityBreakParams) error {
	if p == nil || len(p.Tiers) == 0 {
		return errors.New("at least one tier is required")
	}
	tiers := make([]promo.QuantityTier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinQuantity < tiers[j].MinQuantity })
	for i, t := range tiers {
		if t.MinQuantity <= 0 {
			return errors.New("tier minimum quantity must be positive")
		}
		if t.MaxQuantity != nil && *t.MaxQuantity <= t.MinQuantity {
			return errors.New("tier maximum must exceed its minimum")
		}
		if (t.UnitPrice == nil) == (t.DiscountPercent == nil) {
			return errors.New("each tier sets exactly one of unit price or discount percent")
		}
		if t.UnitPrice != nil && t.UnitPrice.IsNegative() {
			return errors.New("tier unit price must not be negative")
		}
		if t.DiscountPercent != nil && (t.DiscountPercent.IsNegative() || t.DiscountPercent.GreaterThan(hundred())) {
			return errors.New("tier discount percent must be between 0 and 100")
		}
		if i > 0 {
			prev := tiers[i-1]
			if prev.MaxQuantity == nil || *prev.MaxQuantity > t.MinQuantity {
				return errors.New("tiers must not overlap")
			}
		}
	}
	return nil
}

func validateCombo(p *promo.ComboParams) error {
	if p == nil {
		return errors.New("combo parameters are required")
	}
	if p.ComboPrice.IsNegative() {
		return errors.New("combo price must not be negative")
	}
	required := 0
	for i, c := range p.Components {
		if c.ProductID == uuid.Nil {
			return fmt.Errorf("component %d has no product id", i)
		}
		if c.Quantity <= 0 {
			return fmt.Errorf("component %d quantity must be positive", i)
		}
		if !c.Optional {
			required++
			if c.AddOnPrice != nil {
				return fmt.Errorf("component %d is required and cannot carry an add-on price", i)
			}
		}
	}
	if required == 0 {
		return errors.New("at least one required component is needed")
	}
	return nil
}

func validateCouponParams(p *promo.CouponParams) error {
	if p == nil {
		return errors.New("coupon parameters are required")
	}
	if strings.TrimSpace(p.Code) == "" {
		return errors.New("coupon code is required")
	}
	if (p.DiscountAmount == nil) == (p.DiscountPercent == nil) {
		return errors.New("exactly one of discount amount or percent is required")
	}
	if p.DiscountAmount != nil && p.DiscountAmount.IsNegative() {
		return errors.New("discount amount must not be negative")
	}
	if p.DiscountPercent != nil && (p.DiscountPercent.IsNegative() || p.DiscountPercent.GreaterThan(hundred())) {
		return errors.New("discount percent must be between 0 and 100")
	}
	if p.MaxDiscount != nil && p.MaxDiscount.IsNegative() {
		return errors.New("max discount must not be negative")
	}
	if p.MinPurchase.IsNegative() {
		return errors.New("minimum purchase must not be negative")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		return errors.New("validity end must not precede start")
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return errors.New("max uses must be positive")
	}
	return nil
}
