// Package promo defines the engine-level view of promotions, carts and the
// results of a pricing pass. All types here are plain data: the engine never
// walks a live object graph, it receives pre-resolved snapshots keyed by id.
package promo

import (
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
)

// RuleKind discriminates the five supported promotion families.
type RuleKind string

const (
	// RuleBOGO is the "Buy X Get Y" family.
	RuleBOGO RuleKind = "bogo"
	// RuleMixMatch is bundle pricing across qualifying groups.
	RuleMixMatch RuleKind = "mix_match"
	// RuleQuantityBreak is per-line tiered pricing by quantity.
	RuleQuantityBreak RuleKind = "quantity_break"
	// RuleCombo is a fixed-price bundle of specific components.
	RuleCombo RuleKind = "combo"
	// RuleCoupon is a code-gated cart-level discount.
	RuleCoupon RuleKind = "coupon"
)

// Scope restricts a promotion to a product or a category. Both fields nil
// means the promotion applies to the whole cart.
type Scope struct {
	ProductID  *uuid.UUID
	CategoryID *uuid.UUID
}

// Matches reports whether the line falls within the scope.
func (s Scope) Matches(line CartLine) bool {
	if s.ProductID != nil {
		return *s.ProductID == line.ProductID
	}
	if s.CategoryID != nil {
		return *s.CategoryID == line.CategoryID
	}
	return true
}

// Definition is one active promotion rule. Exactly one of the kind-specific
// parameter blocks is populated, matching Kind.
type Definition struct {
	ID       uuid.UUID
	Name     string
	Priority int
	StartsAt time.Time
	EndsAt   time.Time
	Scope    Scope

	// StackClass groups promotions that may co-apply. Definitions sharing a
	// non-empty class stack with each other; the empty class is mutually
	// exclusive against every other promotion touching the same line.
	StackClass string

	// Budget, when set, is a store-wide application budget tracked by the
	// redemption ledger across transactions.
	Budget *int

	Kind          RuleKind
	BOGO          *BOGOParams
	MixMatch      *MixMatchParams
	QuantityBreak *QuantityBreakParams
	Combo         *ComboParams
	Coupon        *CouponParams
}

// ActiveAt reports whether the instant falls within the promotion window.
// The window is inclusive of StartsAt and exclusive of EndsAt.
func (d Definition) ActiveAt(now time.Time) bool {
	if now.Before(d.StartsAt) {
		return false
	}
	if !d.EndsAt.IsZero() && !now.Before(d.EndsAt) {
		return false
	}
	return true
}

// HasSharedBudget reports whether the definition consumes a cross-transaction
// budget through the ledger. Coupons with a use cap always do.
func (d Definition) HasSharedBudget() bool {
	if d.Kind == RuleCoupon {
		return d.Coupon != nil && d.Coupon.MaxUses != nil
	}
	return d.Budget != nil
}

// BOGOParams configures a Buy X Get Y rule. GetDiscountPercent of 100 makes
// the get units free.
type BOGOParams struct {
	BuyQuantity        int
	GetQuantity        int
	GetDiscountPercent money.Amount
	// GetProductID/GetCategoryID restrict which lines the get units may come
	// from. When nil the get units come from the qualifying scope itself.
	GetProductID  *uuid.UUID
	GetCategoryID *uuid.UUID
	// CheapestFree selects the lowest-unit-price eligible units as the get
	// allocation, lower product id first on price ties.
	CheapestFree    bool
	MaxApplications *int
}

// GroupRole distinguishes qualifying groups from reward groups in a
// cross-group mix-and-match rule.
type GroupRole string

const (
	// GroupQualifying units establish eligibility.
	GroupQualifying GroupRole = "qualifying"
	// GroupReward units receive the discount.
	GroupReward GroupRole = "reward"
)

// MixMatchGroup is one set of product/category references with quantity
// bounds and a role.
type MixMatchGroup struct {
	Role        GroupRole
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
	MinQuantity int
	MaxQuantity *int
}

// Contains reports whether the line belongs to the group.
func (g MixMatchGroup) Contains(line CartLine) bool {
	for _, id := range g.ProductIDs {
		if id == line.ProductID {
			return true
		}
	}
	for _, id := range g.CategoryIDs {
		if id == line.CategoryID {
			return true
		}
	}
	return false
}

// MixMatchPricing selects how a matched bundle is priced.
type MixMatchPricing string

const (
	// PricingFixedBundle charges BundlePrice for RequiredQuantity units.
	PricingFixedBundle MixMatchPricing = "fixed_bundle"
	// PricingPercentOff discounts the matched units by DiscountPercent.
	PricingPercentOff MixMatchPricing = "percent_off"
	// PricingCrossGroup discounts reward-group units by DiscountPercent once
	// the qualifying group minimum is satisfied.
	PricingCrossGroup MixMatchPricing = "cross_group"
)

// MixMatchParams configures a mix-and-match bundle.
type MixMatchParams struct {
	RequiredQuantity int
	Groups           []MixMatchGroup
	Pricing          MixMatchPricing
	BundlePrice      *money.Amount
	DiscountPercent  *money.Amount
	MaxApplications  *int
}

// QuantityTier is one [MinQuantity, MaxQuantity) pricing tier. MaxQuantity
// nil means the tier is open-ended. Exactly one of UnitPrice or
// DiscountPercent is set.
type QuantityTier struct {
	MinQuantity     int
	MaxQuantity     *int
	UnitPrice       *money.Amount
	DiscountPercent *money.Amount
}

// Covers reports whether qty falls inside the tier range.
func (t QuantityTier) Covers(qty int) bool {
	if qty < t.MinQuantity {
		return false
	}
	if t.MaxQuantity != nil && qty >= *t.MaxQuantity {
		return false
	}
	return true
}

// QuantityBreakParams holds ordered, non-overlapping quantity tiers.
type QuantityBreakParams struct {
	Tiers []QuantityTier
}

// ComboComponent is one required or optional component of a combo.
type ComboComponent struct {
	ProductID uuid.UUID
	Quantity  int
	Optional  bool
	// AddOnPrice is what an optional component adds on top of the combo
	// price. Required components carry no add-on price.
	AddOnPrice *money.Amount
}

// ComboParams configures a fixed-price bundle of specific components.
type ComboParams struct {
	Components      []ComboComponent
	ComboPrice      money.Amount
	MaxApplications *int
}

// CouponParams configures a code-gated discount. Exactly one of
// DiscountAmount or DiscountPercent is set.
type CouponParams struct {
	Code            string
	DiscountAmount  *money.Amount
	DiscountPercent *money.Amount
	MaxDiscount     *money.Amount
	MinPurchase     money.Amount
	// Coupon validity is inclusive at both ends, unlike the promotion window.
	ValidFrom *time.Time
	ValidTo   *time.Time
	MaxUses   *int
	UsedCount int
	// CustomerID binds the coupon to one loyalty member.
	CustomerID *uuid.UUID
	// CategoryID restricts the coupon to the matching portion of the cart.
	CategoryID *uuid.UUID
	// AppliesPreDiscount computes the coupon over the original subtotal
	// instead of the post-line-promotion remainder.
	AppliesPreDiscount bool
	Active             bool
	Voided             bool
}
