// Package catalog stores promotion definitions and serves the materialized
// views the pricing engine consumes. The engine itself never queries storage;
// it receives definitions through the Store interface.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

var (
	// ErrNotFound indicates the promotion does not exist.
	ErrNotFound = errors.New("catalog: promotion not found")
	// ErrDuplicateCoupon indicates another promotion already owns the code.
	ErrDuplicateCoupon = errors.New("catalog: coupon code already exists")
)

// Store is the promotion catalog. ActivePromotions and CouponByCode serve the
// engine's hot path; the rest back the admin surface.
type Store interface {
	ActivePromotions(ctx context.Context, at time.Time) ([]promo.Definition, error)
	CouponByCode(ctx context.Context, code string) (*promo.Definition, error)

	Upsert(ctx context.Context, def promo.Definition) error
	Get(ctx context.Context, id uuid.UUID) (*promo.Definition, error)
	List(ctx context.Context, limit, offset int) ([]promo.Definition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
