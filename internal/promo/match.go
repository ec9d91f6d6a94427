package promo

import (
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/money"
)

// Claim is quantity consumed from one line by a match. Claimed units include
// full-price units (e.g. the "buy" half of a BOGO group).
type Claim struct {
	LineID   int
	Quantity int
}

// Allocation assigns a discount amount to (promotion, line, quantity).
type Allocation struct {
	PromotionID uuid.UUID
	LineID      int
	Quantity    int
	Amount      money.Amount
}

// Match is the matcher's output for one promotion: the units it consumes and
// the raw discount it would contribute, pre-resolution.
type Match struct {
	Def          *Definition
	Claims       []Claim
	Allocations  []Allocation
	Discount     money.Amount
	Applications int

	// CouponScope carries the coupon's category restriction so the resolver
	// can compute the scoped remainder at resolve time.
	CouponScope *uuid.UUID
}

// DropReason explains why a valid-in-isolation match was not applied.
type DropReason string

const (
	// DropConflict means the match lost the stacking tie-break.
	DropConflict DropReason = "conflict"
	// DropBudget means the shared budget was exhausted at reservation time.
	DropBudget DropReason = "budget_exhausted"
)

// Dropped records a match excluded during resolution, for diagnostics.
type Dropped struct {
	PromotionID uuid.UUID
	Reason      DropReason
}

// RejectedCoupon is a user-visible coupon failure with a stable reason code.
type RejectedCoupon struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Coupon rejection reason codes surfaced to terminals.
const (
	ReasonCouponNotFound       = "CouponNotFound"
	ReasonCouponInactive       = "CouponInactive"
	ReasonCouponVoided         = "CouponVoided"
	ReasonCouponNotYetValid    = "CouponNotYetValid"
	ReasonCouponExpired        = "CouponExpired"
	ReasonUsageLimitReached    = "UsageLimitReached"
	ReasonMinimumPurchaseUnMet = "MinimumPurchaseNotMet"
	ReasonCustomerMismatch     = "CustomerMismatch"
	ReasonBudgetExhausted      = "BudgetExhausted"
	ReasonNoEligibleItems      = "NoEligibleItems"
)

// RedemptionRecord is the permanent audit record of one committed budget
// consumption. Records are never mutated; a void produces a compensating
// record with Reversal set.
type RedemptionRecord struct {
	ID            uuid.UUID    `json:"id"`
	PromotionID   uuid.UUID    `json:"promotionId"`
	CouponCode    string       `json:"couponCode,omitempty"`
	TransactionID string       `json:"transactionId"`
	Count         int          `json:"count"`
	Discount      money.Amount `json:"discount"`
	CommittedAt   time.Time    `json:"committedAt"`
	Reversal      bool         `json:"reversal"`
}

// LineResult is one cart line with its final discount in a PricingResult.
type LineResult struct {
	LineID    int          `json:"lineId"`
	ProductID uuid.UUID    `json:"productId"`
	Quantity  int          `json:"quantity"`
	Subtotal  money.Amount `json:"subtotal"`
	Discount  money.Amount `json:"discount"`
	Net       money.Amount `json:"net"`
}

// AppliedPromotion aggregates one promotion's contribution to the result.
type AppliedPromotion struct {
	PromotionID  uuid.UUID    `json:"promotionId"`
	Name         string       `json:"name"`
	Kind         RuleKind     `json:"kind"`
	CouponCode   string       `json:"couponCode,omitempty"`
	Discount     money.Amount `json:"discount"`
	Applications int          `json:"applications"`
	Lines        []Allocation `json:"lines"`
}

// PricingResult is the final, auditable outcome of one pricing pass.
type PricingResult struct {
	TransactionID   string             `json:"transactionId"`
	Subtotal        money.Amount       `json:"subtotal"`
	TotalDiscount   money.Amount       `json:"totalDiscount"`
	Total           money.Amount       `json:"total"`
	Lines           []LineResult       `json:"lines"`
	Applications    []AppliedPromotion `json:"applications"`
	RejectedCoupons []RejectedCoupon   `json:"rejectedCoupons,omitempty"`
	Diagnostics     []Dropped          `json:"-"`
}
