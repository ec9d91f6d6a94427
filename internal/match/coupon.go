package match

import (
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// MatchCoupon validates a coupon against the cart and produces at most one
// match over the coupon's scoped subtotal. Validation failures return a
// CouponError with a stable reason code because coupon failures are always
// shown to the customer. The final discount base depends on what the other
// promotions leave behind, so the resolver recomputes the amount; the match
// carries the raw amount against the full scoped subtotal.
func MatchCoupon(def *promo.Definition, snap *promo.Snapshot, mctx Context) (*promo.Match, *promo.CouponError) {
	c := def.Coupon
	if c == nil {
		return nil, nil
	}
	if rejected := validateCoupon(c, snap, mctx); rejected != nil {
		return nil, rejected
	}

	scoped := scopedSubtotal(c, snap)
	if !scoped.IsPositive() {
		return nil, &promo.CouponError{Code: c.Code, Reason: promo.ReasonNoEligibleItems}
	}

	discount := couponDiscount(c, scoped)
	if !discount.IsPositive() {
		return nil, &promo.CouponError{Code: c.Code, Reason: promo.ReasonNoEligibleItems}
	}

	return &promo.Match{
		Def:          def,
		Discount:     discount,
		Applications: 1,
		CouponScope:  c.CategoryID,
	}, nil
}

func validateCoupon(c *promo.CouponParams, snap *promo.Snapshot, mctx Context) *promo.CouponError {
	reject := func(reason string) *promo.CouponError {
		return &promo.CouponError{Code: c.Code, Reason: reason}
	}
	if c.Voided {
		return reject(promo.ReasonCouponVoided)
	}
	if !c.Active {
		return reject(promo.ReasonCouponInactive)
	}
	if c.ValidFrom != nil && mctx.Now.Before(*c.ValidFrom) {
		return reject(promo.ReasonCouponNotYetValid)
	}
	if c.ValidTo != nil && mctx.Now.After(*c.ValidTo) {
		return reject(promo.ReasonCouponExpired)
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return reject(promo.ReasonUsageLimitReached)
	}
	if snap.Subtotal().LessThan(c.MinPurchase) {
		return reject(promo.ReasonMinimumPurchaseUnMet)
	}
	if c.CustomerID != nil {
		if mctx.CustomerID == nil || *mctx.CustomerID != *c.CustomerID {
			return reject(promo.ReasonCustomerMismatch)
		}
	}
	return nil
}

// CouponDiscount computes the coupon amount over the given base, honoring
// the max-discount cap and never exceeding the base. The resolver uses it to
// recompute the amount against the post-resolution remainder.
func CouponDiscount(c *promo.CouponParams, base money.Amount) money.Amount {
	return couponDiscount(c, base)
}

func couponDiscount(c *promo.CouponParams, base money.Amount) money.Amount {
	if !base.IsPositive() {
		return money.Zero
	}
	var discount money.Amount
	switch {
	case c.DiscountPercent != nil:
		discount = money.Percent(base, *c.DiscountPercent)
	case c.DiscountAmount != nil:
		discount = *c.DiscountAmount
	default:
		return money.Zero
	}
	if c.MaxDiscount != nil {
		discount = money.Min(discount, *c.MaxDiscount)
	}
	return money.ClampZero(money.Min(discount, base))
}

// ScopedSubtotal sums the lines the coupon covers: the whole cart, or only
// the lines in the coupon's category when one is configured.
func ScopedSubtotal(c *promo.CouponParams, snap *promo.Snapshot) money.Amount {
	return scopedSubtotal(c, snap)
}

func scopedSubtotal(c *promo.CouponParams, snap *promo.Snapshot) money.Amount {
	total := money.Zero
	for _, l := range snap.Lines() {
		if c.CategoryID != nil && l.CategoryID != *c.CategoryID {
			continue
		}
		total = total.Add(l.Subtotal())
	}
	return total
}
