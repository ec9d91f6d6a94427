// Package ledger tracks consumption of finite, shared redemption budgets
// (coupon use caps, store-wide promotion budgets) across concurrently
// executing transactions. It is the only shared mutable state in the engine.
//
// The protocol is reserve-then-commit-or-release: a reservation provisionally
// claims budget for one transaction and expires automatically if the pricing
// pass never commits, so a crashed terminal cannot leak budget. Commit is
// idempotent per token.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrUnknownReservation is returned by Commit when the token has no
	// pending reservation and no prior commit: either it was never granted
	// or it expired before the commit arrived.
	ErrUnknownReservation = errors.New("ledger: unknown or expired reservation")
)

// Ledger serializes budget consumption per counter. Implementations must
// guarantee that concurrent reservations against one counter can never
// together exceed the limit.
type Ledger interface {
	// TryReserve grants between 0 and requested units against the counter,
	// given the counter's configured limit. A granted count of zero means the
	// budget is exhausted. Reserving again with the same token returns the
	// existing grant rather than stacking a second claim.
	TryReserve(ctx context.Context, counterID string, limit int, token string, requested int) (int, error)

	// Commit makes the reservation permanent and returns the committed
	// count. Committing the same token twice returns the original count
	// without double-counting.
	Commit(ctx context.Context, counterID, token string) (int, error)

	// Release returns a pending reservation's units to the budget. Releasing
	// an unknown token is a no-op.
	Release(ctx context.Context, counterID, token string) error

	// Shrink lowers a pending reservation to count units in place, returning
	// only the excess to the budget. Unlike a release followed by a fresh
	// reservation, the kept units are never exposed to competing
	// transactions. Shrinking an unknown token is a no-op, a count at or
	// above the grant leaves it unchanged, and zero removes it.
	Shrink(ctx context.Context, counterID, token string, count int) error

	// Refund compensates a voided transaction by returning committed units
	// to the budget. The historical redemption record is not touched.
	Refund(ctx context.Context, counterID string, count int) error

	// Used reports the committed consumption of a counter.
	Used(ctx context.Context, counterID string) (int, error)
}
