// Package pricing orchestrates one pricing pass: match, resolve, reserve,
// record. It owns the reserve-then-commit-or-release lifecycle of a
// transaction's redemption budget.
package pricing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mn-ibiz/promo-engine/internal/ledger"
	"github.com/mn-ibiz/promo-engine/internal/match"
	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/obs"
	"github.com/mn-ibiz/promo-engine/internal/promo"
	"github.com/mn-ibiz/promo-engine/internal/record"
	"github.com/mn-ibiz/promo-engine/internal/stack"
)

var (
	// ErrUnknownTransaction is returned by Commit/Void for a transaction id
	// this instance holds no state for.
	ErrUnknownTransaction = errors.New("pricing: unknown transaction")
	// ErrAlreadyCommitted is returned when a quote is requested for a
	// transaction that has already committed.
	ErrAlreadyCommitted = errors.New("pricing: transaction already committed")
)

// Catalog supplies materialized promotion definitions. The engine never
// fetches promotions itself; it re-validates windows defensively.
type Catalog interface {
	ActivePromotions(ctx context.Context, at time.Time) ([]promo.Definition, error)
	CouponByCode(ctx context.Context, code string) (*promo.Definition, error)
}

// RecordSink receives committed redemption records for durable storage.
type RecordSink interface {
	EnqueueRedemptions(ctx context.Context, records []promo.RedemptionRecord) error
}

// QuoteRequest is one cart to price.
type QuoteRequest struct {
	TransactionID string
	Lines         []promo.CartLine
	CouponCodes   []string
	CustomerID    *uuid.UUID
}

// Service runs pricing passes. The matcher, resolver and recorder are pure;
// the only shared state is the ledger and the per-transaction reservation
// registry, which pins a transaction to the instance that quoted it.
type Service struct {
	Catalog Catalog
	Ledger  ledger.Ledger
	Sink    RecordSink
	Logger  zerolog.Logger
	Now     func() time.Time
	// ReservationTTL bounds how long quoted reservations are remembered
	// before the lazy sweep forgets them. It should match the ledger TTL.
	ReservationTTL time.Duration

	mu        sync.Mutex
	pending   map[string]*passState
	committed map[string][]promo.RedemptionRecord
}

// heldReservation is one counter the transaction holds budget against.
type heldReservation struct {
	counterID  string
	promotion  uuid.UUID
	couponCode string
	count      int
	discount   money.Amount
}

type passState struct {
	held      []heldReservation
	reservedA time.Time
}

// Quote prices the cart and reserves shared budgets for the transaction.
// Coupon failures come back inside the result; an invariant violation
// aborts with an error and releases everything reserved so far.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (promo.PricingResult, error) {
	if s.Catalog == nil || s.Ledger == nil {
		return promo.PricingResult{}, errors.New("pricing: service not configured")
	}
	now := s.now()

	s.sweep(now)
	s.mu.Lock()
	if _, done := s.committed[req.TransactionID]; done {
		s.mu.Unlock()
		return promo.PricingResult{}, ErrAlreadyCommitted
	}
	if prior, ok := s.pending[req.TransactionID]; ok {
		// A re-quote releases the prior hold so the pass starts clean.
		s.mu.Unlock()
		s.releaseHeld(ctx, req.TransactionID, prior.held)
	} else {
		s.mu.Unlock()
	}

	snap := promo.NewSnapshot(req.Lines)
	mctx := match.Context{Now: now, CustomerID: req.CustomerID}

	defs, err := s.Catalog.ActivePromotions(ctx, now)
	if err != nil {
		return promo.PricingResult{}, err
	}

	var candidates []promo.Match
	for i := range defs {
		def := &defs[i]
		if def.Kind == promo.RuleCoupon {
			continue
		}
		ms, err := match.Matches(def, snap, mctx)
		if err != nil {
			return promo.PricingResult{}, err
		}
		candidates = append(candidates, ms...)
	}

	var rejected []promo.RejectedCoupon
	for _, code := range req.CouponCodes {
		def, err := s.Catalog.CouponByCode(ctx, code)
		if err != nil {
			return promo.PricingResult{}, err
		}
		if def == nil || def.Coupon == nil {
			rejected = append(rejected, promo.RejectedCoupon{Code: code, Reason: promo.ReasonCouponNotFound})
			continue
		}
		m, rej := match.MatchCoupon(def, snap, mctx)
		if rej != nil {
			rejected = append(rejected, promo.RejectedCoupon{Code: rej.Code, Reason: rej.Reason})
			continue
		}
		candidates = append(candidates, *m)
	}

	var diagnostics []promo.Dropped
	candidates, budgetRejected, dropped, err := s.reserveBudgets(ctx, req.TransactionID, candidates)
	if err != nil {
		return promo.PricingResult{}, err
	}
	rejected = append(rejected, budgetRejected...)
	diagnostics = append(diagnostics, dropped...)

	resolved, err := stack.Resolve(snap, candidates)
	if err != nil {
		s.abandon(ctx, req.TransactionID)
		return promo.PricingResult{}, err
	}
	rejected = append(rejected, resolved.RejectedCoupons...)
	diagnostics = append(diagnostics, resolved.Dropped...)

	if err := s.shrinkReservations(ctx, req.TransactionID, resolved.Accepted); err != nil {
		s.abandon(ctx, req.TransactionID)
		return promo.PricingResult{}, err
	}
	s.recordDiscounts(req.TransactionID, resolved.Accepted)

	result, err := record.Finalize(req.TransactionID, snap, resolved.Accepted, rejected, diagnostics)
	if err != nil {
		s.abandon(ctx, req.TransactionID)
		return promo.PricingResult{}, err
	}

	s.Logger.Debug().
		Str("transaction_id", req.TransactionID).
		Int("promotions_applied", len(result.Applications)).
		Str("total_discount", result.TotalDiscount.String()).
		Msg("pricing pass complete")
	observeQuote(result, now, s.now())
	return result, nil
}

func observeQuote(result promo.PricingResult, started, finished time.Time) {
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues("ok").Inc()
	}
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(float64(finished.Sub(started).Milliseconds()))
	}
	if obs.DiscountAmount != nil {
		v, _ := result.TotalDiscount.Float64()
		obs.DiscountAmount.Observe(v)
	}
	if obs.PromotionApplications != nil {
		for _, a := range result.Applications {
			obs.PromotionApplications.WithLabelValues(string(a.Kind)).Inc()
		}
	}
	if obs.CouponRejections != nil {
		for _, r := range result.RejectedCoupons {
			obs.CouponRejections.WithLabelValues(r.Reason).Inc()
		}
	}
}

// Commit makes the transaction's reservations permanent and emits the
// audit records. Committing twice returns the original records.
func (s *Service) Commit(ctx context.Context, transactionID string) ([]promo.RedemptionRecord, error) {
	s.mu.Lock()
	if records, ok := s.committed[transactionID]; ok {
		s.mu.Unlock()
		return records, nil
	}
	state, ok := s.pending[transactionID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownTransaction
	}
	s.mu.Unlock()

	now := s.now()
	var records []promo.RedemptionRecord
	for _, h := range state.held {
		count, err := s.Ledger.Commit(ctx, h.counterID, transactionID)
		if err != nil {
			if errors.Is(err, ledger.ErrUnknownReservation) {
				// The reservation timed out before the commit arrived.
				s.Logger.Warn().
					Str("transaction_id", transactionID).
					Str("counter", h.counterID).
					Msg("reservation expired before commit")
				continue
			}
			return nil, err
		}
		records = append(records, promo.RedemptionRecord{
			ID:            uuid.New(),
			PromotionID:   h.promotion,
			CouponCode:    h.couponCode,
			TransactionID: transactionID,
			Count:         count,
			Discount:      h.discount,
			CommittedAt:   now,
		})
	}

	s.mu.Lock()
	delete(s.pending, transactionID)
	if s.committed == nil {
		s.committed = make(map[string][]promo.RedemptionRecord)
	}
	s.committed[transactionID] = records
	s.mu.Unlock()

	if s.Sink != nil && len(records) > 0 {
		if err := s.Sink.EnqueueRedemptions(ctx, records); err != nil {
			s.Logger.Error().Err(err).
				Str("transaction_id", transactionID).
				Msg("enqueue redemption records")
		}
	}
	if obs.CommitTotal != nil {
		obs.CommitTotal.WithLabelValues("commit", "ok").Inc()
	}
	return records, nil
}

// Void compensates a committed transaction: budgets are refunded and a
// reversal record is emitted for each original. The originals stay untouched.
func (s *Service) Void(ctx context.Context, transactionID string) ([]promo.RedemptionRecord, error) {
	s.mu.Lock()
	records, ok := s.committed[transactionID]
	if !ok {
		if state, pendingOK := s.pending[transactionID]; pendingOK {
			// Voiding an uncommitted pass just releases the hold.
			delete(s.pending, transactionID)
			s.mu.Unlock()
			s.releaseHeld(ctx, transactionID, state.held)
			return nil, nil
		}
		s.mu.Unlock()
		return nil, ErrUnknownTransaction
	}
	delete(s.committed, transactionID)
	s.mu.Unlock()

	now := s.now()
	var reversals []promo.RedemptionRecord
	for _, r := range records {
		if err := s.Ledger.Refund(ctx, r.PromotionID.String(), r.Count); err != nil {
			return nil, err
		}
		reversals = append(reversals, promo.RedemptionRecord{
			ID:            uuid.New(),
			PromotionID:   r.PromotionID,
			CouponCode:    r.CouponCode,
			TransactionID: transactionID,
			Count:         r.Count,
			Discount:      r.Discount,
			CommittedAt:   now,
			Reversal:      true,
		})
	}
	if s.Sink != nil && len(reversals) > 0 {
		if err := s.Sink.EnqueueRedemptions(ctx, reversals); err != nil {
			s.Logger.Error().Err(err).
				Str("transaction_id", transactionID).
				Msg("enqueue reversal records")
		}
	}
	if obs.CommitTotal != nil {
		obs.CommitTotal.WithLabelValues("void", "ok").Inc()
	}
	return reversals, nil
}

// CouponValidation is the outcome of a standalone coupon check. The
// discount is indicative: the pass that redeems it may compute less when
// other promotions shrink the remainder it applies to.
type CouponValidation struct {
	Code     string       `json:"code"`
	Valid    bool         `json:"valid"`
	Reason   string       `json:"reason,omitempty"`
	Discount money.Amount `json:"discount"`
}

// ValidateCoupon checks a coupon against a cart without touching the ledger.
func (s *Service) ValidateCoupon(ctx context.Context, code string, lines []promo.CartLine, customerID *uuid.UUID) (CouponValidation, error) {
	def, err := s.Catalog.CouponByCode(ctx, code)
	if err != nil {
		return CouponValidation{}, err
	}
	if def == nil || def.Coupon == nil {
		return CouponValidation{Code: code, Reason: promo.ReasonCouponNotFound, Discount: money.Zero}, nil
	}
	snap := promo.NewSnapshot(lines)
	m, rej := match.MatchCoupon(def, snap, match.Context{Now: s.now(), CustomerID: customerID})
	if rej != nil {
		return CouponValidation{Code: code, Reason: rej.Reason, Discount: money.Zero}, nil
	}
	return CouponValidation{Code: def.Coupon.Code, Valid: true, Discount: m.Discount}, nil
}

// reserveBudgets claims shared budget for every match whose promotion has
// one, trimming matches the budget cannot cover. Exhaustion is user-visible
// for coupons and silent (diagnostics only) for everything else.
func (s *Service) reserveBudgets(ctx context.Context, token string, candidates []promo.Match) ([]promo.Match, []promo.RejectedCoupon, []promo.Dropped, error) {
	type defGroup struct {
		def     *promo.Definition
		indices []int
	}
	groups := map[uuid.UUID]*defGroup{}
	var order []uuid.UUID
	for i, m := range candidates {
		if !m.Def.HasSharedBudget() {
			continue
		}
		g, ok := groups[m.Def.ID]
		if !ok {
			g = &defGroup{def: m.Def}
			groups[m.Def.ID] = g
			order = append(order, m.Def.ID)
		}
		g.indices = append(g.indices, i)
	}
	sort.Slice(order, func(i, j int) bool { return uuidLess(order[i], order[j]) })

	drop := map[int]bool{}
	var rejected []promo.RejectedCoupon
	var dropped []promo.Dropped
	var held []heldReservation

	for _, id := range order {
		g := groups[id]
		want := 0
		discount := money.Zero
		for _, i := range g.indices {
			want += candidates[i].Applications
			discount = discount.Add(candidates[i].Discount)
		}
		limit := budgetLimit(g.def)
		granted, err := s.Ledger.TryReserve(ctx, g.def.ID.String(), limit, token, want)
		if err != nil {
			return nil, nil, nil, err
		}
		if obs.BudgetReservations != nil {
			if granted >= want {
				obs.BudgetReservations.WithLabelValues("granted").Inc()
			} else {
				obs.BudgetReservations.WithLabelValues("exhausted").Inc()
			}
		}
		if granted > 0 {
			h := heldReservation{counterID: g.def.ID.String(), promotion: g.def.ID, count: granted, discount: discount}
			if g.def.Coupon != nil {
				h.couponCode = g.def.Coupon.Code
			}
			held = append(held, h)
		}
		if granted >= want {
			continue
		}
		// Trim this promotion's matches to the granted application count.
		remaining := granted
		for _, i := range g.indices {
			if remaining >= candidates[i].Applications {
				remaining -= candidates[i].Applications
				continue
			}
			drop[i] = true
			if g.def.Kind == promo.RuleCoupon {
				rejected = append(rejected, promo.RejectedCoupon{
					Code:   g.def.Coupon.Code,
					Reason: promo.ReasonBudgetExhausted,
				})
			} else {
				dropped = append(dropped, promo.Dropped{PromotionID: g.def.ID, Reason: promo.DropBudget})
			}
		}
	}

	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(map[string]*passState)
	}
	s.pending[token] = &passState{held: held, reservedA: s.now()}
	s.mu.Unlock()

	if len(drop) == 0 {
		return candidates, rejected, dropped, nil
	}
	kept := make([]promo.Match, 0, len(candidates))
	for i, m := range candidates {
		if !drop[i] {
			kept = append(kept, m)
		}
	}
	return kept, rejected, dropped, nil
}

// shrinkReservations narrows holds for promotions whose matches the resolver
// subsequently dropped, so conflict losers do not pin budget until timeout.
func (s *Service) shrinkReservations(ctx context.Context, token string, accepted []promo.Match) error {
	acceptedApps := map[uuid.UUID]int{}
	for _, m := range accepted {
		if m.Def.HasSharedBudget() {
			acceptedApps[m.Def.ID] += m.Applications
		}
	}

	s.mu.Lock()
	state, ok := s.pending[token]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	var kept []heldReservation
	for _, h := range state.held {
		need := acceptedApps[h.promotion]
		if need >= h.count {
			kept = append(kept, h)
			continue
		}
		// Shrink lowers the hold in place; the kept units never pass through
		// the pool where a concurrent reservation could take them.
		if err := s.Ledger.Shrink(ctx, h.counterID, token, need); err != nil {
			return err
		}
		if need > 0 {
			h.count = need
			kept = append(kept, h)
		}
	}

	s.mu.Lock()
	state.held = kept
	s.mu.Unlock()
	return nil
}

// recordDiscounts attaches each promotion's final discount to its hold so
// the redemption record carries the audited amount.
func (s *Service) recordDiscounts(token string, accepted []promo.Match) {
	totals := map[uuid.UUID]money.Amount{}
	for _, m := range accepted {
		prev, ok := totals[m.Def.ID]
		if !ok {
			prev = money.Zero
		}
		totals[m.Def.ID] = prev.Add(m.Discount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.pending[token]
	if !ok {
		return
	}
	for i := range state.held {
		if total, ok := totals[state.held[i].promotion]; ok {
			state.held[i].discount = total
		}
	}
}

func (s *Service) abandon(ctx context.Context, token string) {
	s.mu.Lock()
	state, ok := s.pending[token]
	if ok {
		delete(s.pending, token)
	}
	s.mu.Unlock()
	if ok {
		s.releaseHeld(ctx, token, state.held)
	}
}

func (s *Service) releaseHeld(ctx context.Context, token string, held []heldReservation) {
	for _, h := range held {
		if err := s.Ledger.Release(ctx, h.counterID, token); err != nil {
			s.Logger.Warn().Err(err).
				Str("transaction_id", token).
				Str("counter", h.counterID).
				Msg("release reservation")
		}
	}
}

// sweep forgets pending passes older than the reservation TTL. Their ledger
// reservations have already expired server-side.
func (s *Service) sweep(now time.Time) {
	ttl := s.ReservationTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, state := range s.pending {
		if now.Sub(state.reservedA) > ttl {
			delete(s.pending, token)
		}
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// budgetLimit is the headroom the ledger may grant against. Coupons count
// their stored UsedCount against MaxUses so an imported definition with
// prior uses does not start the ledger from a full allowance.
func budgetLimit(def *promo.Definition) int {
	if def.Kind == promo.RuleCoupon && def.Coupon != nil && def.Coupon.MaxUses != nil {
		remaining := *def.Coupon.MaxUses - def.Coupon.UsedCount
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	}
	if def.Budget != nil {
		return *def.Budget
	}
	return 0
}

func uuidLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
