package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// ErrStoreUnavailable indicates the catalog database is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// NewPG constructs a Store backed by a pgx connection pool. The full
// definition lives in a jsonb column; the indexed columns exist only to
// drive the window and coupon lookups.
func NewPG(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) ActivePromotions(ctx context.Context, at time.Time) ([]promo.Definition, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT definition FROM promotions
WHERE starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1)
ORDER BY id`, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

func (s *pgStore) CouponByCode(ctx context.Context, code string) (*promo.Definition, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT definition FROM promotions WHERE coupon_code = $1`,
		strings.ToUpper(strings.TrimSpace(code))).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeDefinition(raw)
}

func (s *pgStore) Upsert(ctx context.Context, def promo.Definition) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	var couponCode any
	if def.Kind == promo.RuleCoupon && def.Coupon != nil {
		couponCode = strings.ToUpper(strings.TrimSpace(def.Coupon.Code))
	}
	endsAt := pgtype.Timestamptz{}
	if !def.EndsAt.IsZero() {
		endsAt = pgtype.Timestamptz{Time: def.EndsAt, Valid: true}
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO promotions (id, name, kind, starts_at, ends_at, coupon_code, definition)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  kind = EXCLUDED.kind,
  starts_at = EXCLUDED.starts_at,
  ends_at = EXCLUDED.ends_at,
  coupon_code = EXCLUDED.coupon_code,
  definition = EXCLUDED.definition,
  updated_at = now()`,
		def.ID, def.Name, string(def.Kind), def.StartsAt, endsAt, couponCode, raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCoupon
		}
		return err
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*promo.Definition, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT definition FROM promotions WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDefinition(raw)
}

func (s *pgStore) List(ctx context.Context, limit, offset int) ([]promo.Definition, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT definition FROM promotions ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDefinitions(rows pgx.Rows) ([]promo.Definition, error) {
	var out []promo.Definition
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		def, err := decodeDefinition(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

func decodeDefinition(raw []byte) (*promo.Definition, error) {
	var def promo.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
