package record

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// ErrStoreUnavailable indicates the record store dependency is not configured.
var ErrStoreUnavailable = errors.New("record: store unavailable")

// Store persists committed redemption records. Records are append-only.
type Store interface {
	InsertRedemptions(ctx context.Context, records []promo.RedemptionRecord) error
	ListByTransaction(ctx context.Context, transactionID string) ([]promo.RedemptionRecord, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// InsertRedemptions writes the batch inside one transaction. Replayed
// batches are absorbed by the primary key.
func (s *pgStore) InsertRedemptions(ctx context.Context, records []promo.RedemptionRecord) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, r := range records {
		_, err := tx.Exec(ctx, `INSERT INTO redemption_records
(id, promotion_id, coupon_code, transaction_id, count, discount, committed_at, reversal)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
			r.ID, r.PromotionID, r.CouponCode, r.TransactionID, r.Count, r.Discount.String(), r.CommittedAt, r.Reversal)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListByTransaction returns the records a transaction produced, reversals
// included, oldest first.
func (s *pgStore) ListByTransaction(ctx context.Context, transactionID string) ([]promo.RedemptionRecord, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, promotion_id, COALESCE(coupon_code, ''), transaction_id, count, discount::text, committed_at, reversal
FROM redemption_records WHERE transaction_id = $1 ORDER BY committed_at, id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []promo.RedemptionRecord
	for rows.Next() {
		var r promo.RedemptionRecord
		var discount string
		if err := rows.Scan(&r.ID, &r.PromotionID, &r.CouponCode, &r.TransactionID, &r.Count, &discount, &r.CommittedAt, &r.Reversal); err != nil {
			return nil, err
		}
		parsed, err := money.FromString(discount)
		if err != nil {
			return nil, err
		}
		r.Discount = parsed
		out = append(out, r)
	}
	return out, rows.Err()
}
