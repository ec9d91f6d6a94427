package promo

import "errors"

var (
	// ErrInvariant marks a conservation breach inside the engine: more
	// quantity claimed or more discount allocated than a line holds. It is a
	// programming defect and aborts the pricing pass.
	ErrInvariant = errors.New("pricing invariant violated")

	// ErrCouponRejected wraps user-visible coupon validation failures.
	ErrCouponRejected = errors.New("coupon rejected")
)

// CouponError pairs ErrCouponRejected with a stable reason code.
type CouponError struct {
	Code   string
	Reason string
}

// Error implements the error interface.
func (e *CouponError) Error() string {
	return "coupon " + e.Code + " rejected: " + e.Reason
}

// Unwrap lets errors.Is match ErrCouponRejected.
func (e *CouponError) Unwrap() error {
	return ErrCouponRejected
}
