package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts pricing pass outcomes.
	QuoteTotal *prometheus.CounterVec
	// QuoteDuration records pricing pass latency in milliseconds.
	QuoteDuration prometheus.Histogram
	// DiscountAmount observes the total discount of each priced cart.
	DiscountAmount prometheus.Histogram
	// PromotionApplications counts applied promotions by rule kind.
	PromotionApplications *prometheus.CounterVec
	// CouponRejections counts coupon rejections by reason code.
	CouponRejections *prometheus.CounterVec
	// BudgetReservations counts ledger reservation outcomes.
	BudgetReservations *prometheus.CounterVec
	// CommitTotal counts transaction commit and void outcomes.
	CommitTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of pricing pass outcomes.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Pricing pass latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		})
		DiscountAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discount_amount",
			Help:      "Total discount granted per priced cart.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		})
		PromotionApplications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_applications_total",
			Help:      "Count of applied promotions by rule kind.",
		}, []string{"kind"})
		CouponRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_rejections_total",
			Help:      "Count of coupon rejections by reason code.",
		}, []string{"reason"})
		BudgetReservations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_reservations_total",
			Help:      "Count of ledger reservation outcomes.",
		}, []string{"result"})
		CommitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_total",
			Help:      "Count of transaction commit and void outcomes.",
		}, []string{"operation", "result"})

		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteDuration = v
			}
		})
		mustRegisterCollector(reg, DiscountAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				DiscountAmount = v
			}
		})
		mustRegisterCollector(reg, PromotionApplications, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromotionApplications = v
			}
		})
		mustRegisterCollector(reg, CouponRejections, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponRejections = v
			}
		})
		mustRegisterCollector(reg, BudgetReservations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BudgetReservations = v
			}
		})
		mustRegisterCollector(reg, CommitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CommitTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
