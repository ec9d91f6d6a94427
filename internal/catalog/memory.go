package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/promo-engine/internal/promo"
)

// Memory is an in-process Store for tests and single-node deployments.
type Memory struct {
	mu   sync.RWMutex
	defs map[uuid.UUID]promo.Definition
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{defs: make(map[uuid.UUID]promo.Definition)}
}

// ActivePromotions returns definitions whose window covers the instant,
// ordered by id for a stable pass.
func (m *Memory) ActivePromotions(_ context.Context, at time.Time) ([]promo.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []promo.Definition
	for _, d := range m.defs {
		if d.ActiveAt(at) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// CouponByCode finds the coupon promotion owning the code, nil when absent.
// Codes are matched case-insensitively.
func (m *Memory) CouponByCode(_ context.Context, code string) (*promo.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.defs {
		if d.Kind == promo.RuleCoupon && d.Coupon != nil && strings.EqualFold(d.Coupon.Code, code) {
			def := d
			return &def, nil
		}
	}
	return nil, nil
}

// Upsert inserts or replaces a definition.
func (m *Memory) Upsert(_ context.Context, def promo.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.Kind == promo.RuleCoupon && def.Coupon != nil {
		for id, d := range m.defs {
			if id != def.ID && d.Kind == promo.RuleCoupon && d.Coupon != nil &&
				strings.EqualFold(d.Coupon.Code, def.Coupon.Code) {
				return ErrDuplicateCoupon
			}
		}
	}
	m.defs[def.ID] = def
	return nil
}

// Get returns the definition by id.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*promo.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// List pages through all definitions ordered by id.
func (m *Memory) List(_ context.Context, limit, offset int) ([]promo.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]promo.Definition, 0, len(m.defs))
	for _, d := range m.defs {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Delete removes a definition.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[id]; !ok {
		return ErrNotFound
	}
	delete(m.defs, id)
	return nil
}
