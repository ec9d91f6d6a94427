// Package money provides decimal-exact monetary arithmetic for the pricing
// engine. Amounts are never represented as binary floating point.
package money

import "github.com/shopspring/decimal"

// Amount is a decimal monetary value in major units (e.g. 12.50).
type Amount = decimal.Decimal

var (
	// Zero is the zero amount.
	Zero = decimal.Zero

	hundred = decimal.NewFromInt(100)
)

// FromInt builds an amount from a whole number of major units.
func FromInt(v int64) Amount {
	return decimal.NewFromInt(v)
}

// FromString parses a decimal string such as "19.99".
func FromString(s string) (Amount, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses a decimal string and panics on failure. Intended for
// constants in tests and seed data.
func MustFromString(s string) Amount {
	return decimal.RequireFromString(s)
}

// MulQty multiplies a unit amount by a quantity.
func MulQty(unit Amount, qty int) Amount {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Percent returns pct percent of base, rounded half-up to two decimal places.
// Rounding happens once, at the point a discount amount is produced, so
// downstream conservation checks stay exact.
func Percent(base Amount, pct Amount) Amount {
	return base.Mul(pct).Div(hundred).Round(2)
}

// ClampZero floors negative amounts at zero.
func ClampZero(v Amount) Amount {
	if v.IsNegative() {
		return Zero
	}
	return v
}

// Min returns the smaller of two amounts.
func Min(a, b Amount) Amount {
	return decimal.Min(a, b)
}

// SplitProRata distributes total across weights proportionally. The shares
// always sum to exactly total: each share is rounded down to two decimal
// places and the remainder is added to the largest weight (first such weight
// on ties, so the split is deterministic). A zero weight sum yields all-zero
// shares plus the total on the first share when total is non-zero.
func SplitProRata(total Amount, weights []Amount) []Amount {
	shares := make([]Amount, len(weights))
	if len(weights) == 0 {
		return shares
	}
	weightSum := Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}
	if weightSum.IsZero() {
		for i := range shares {
			shares[i] = Zero
		}
		if !total.IsZero() {
			shares[0] = total
		}
		return shares
	}
	allocated := Zero
	largest := 0
	for i, w := range weights {
		shares[i] = total.Mul(w).Div(weightSum).RoundDown(2)
		allocated = allocated.Add(shares[i])
		if w.GreaterThan(weights[largest]) {
			largest = i
		}
	}
	shares[largest] = shares[largest].Add(total.Sub(allocated))
	return shares
}
