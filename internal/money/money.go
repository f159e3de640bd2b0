// Package money provides an exact fixed-precision currency amount.
//
// Amounts are held as integer minor units (cents). All arithmetic, including
// splitting, stays in minor units; decimals only appear at the boundary when
// parsing user input or rendering for display.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
)

// Scale is the number of decimal places in a minor unit.
const Scale = 2

// DefaultMax is the largest amount Parse accepts when no limit is configured.
const DefaultMax Money = 1_000_000_00

// Money is a signed amount in minor units.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromMinor builds a Money from minor units.
func FromMinor(units int64) Money {
	return Money(units)
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }
func (m Money) IsZero() bool      { return m == 0 }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

// Sign returns -1, 0 or +1 depending on the sign of m.
func (m Money) Sign() int {
	return m.Cmp(Zero)
}

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// SplitEvenly divides m into n shares that sum exactly to m. The remainder is
// handed out one minor unit at a time to the earliest shares, so 10.00 split
// three ways is [3.34, 3.33, 3.33]. Returns nil when n < 1.
func (m Money) SplitEvenly(n int) []Money {
	if n < 1 {
		return nil
	}
	weights := make([]int64, n)
	for i := range weights {
		weights[i] = 1
	}
	return m.Allocate(weights)
}

// Allocate distributes m proportionally to weights using the largest
// remainder method. Shares sum exactly to m; ties on the remainder go to the
// lower index. Negative amounts are allocated by magnitude and negated.
// Returns nil if weights is empty or all weights are non-positive.
func (m Money) Allocate(weights []int64) []Money {
	var total int64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return nil
	}

	sign := Money(1)
	amount := m
	if amount < 0 {
		sign, amount = -1, -amount
	}

	shares := make([]Money, len(weights))
	remainders := make([]int64, len(weights))
	var allocated Money
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		// amount*w must fit in int64.
		q := int64(amount) * w
		shares[i] = Money(q / total)
		remainders[i] = q % total
		allocated += shares[i]
	}

	left := amount - allocated
	for left > 0 {
		best := -1
		for i, r := range remainders {
			if weights[i] <= 0 {
				continue
			}
			if best == -1 || r > remainders[best] {
				best = i
			}
		}
		shares[best]++
		remainders[best] = -1
		left--
	}

	if sign < 0 {
		for i := range shares {
			shares[i] = -shares[i]
		}
	}
	return shares
}

// Decimal converts the amount to a decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// Float64 returns the amount as a float for charts and logs. Never compute
// with it.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// String renders the amount with exactly two decimals, e.g. "-3.33".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// Parse converts untrusted decimal input into a positive amount no larger
// than max. Input is rounded half away from zero to minor units; both "." and
// "," are accepted as the decimal separator. A max of zero means DefaultMax.
func Parse(s string, max Money) (Money, error) {
	if max <= 0 {
		max = DefaultMax
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, apperr.WithMetadata(apperr.CodeInvalidAmount, "amount is required", nil)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperr.WithMetadata(apperr.CodeInvalidAmount,
			fmt.Sprintf("amount %q is not a number", s), map[string]string{"input": s})
	}
	d = d.Round(Scale)
	if !d.IsPositive() {
		return 0, apperr.WithMetadata(apperr.CodeInvalidAmount,
			"amount must be greater than zero", map[string]string{"input": s})
	}
	if d.GreaterThan(max.Decimal()) {
		return 0, apperr.WithMetadata(apperr.CodeInvalidAmount,
			fmt.Sprintf("amount exceeds maximum of %s", max), map[string]string{"input": s, "max": max.String()})
	}
	return Money(d.Shift(Scale).IntPart()), nil
}

// MustParse is Parse for literals in tests and fixtures. It panics on error.
func MustParse(s string) Money {
	m, err := Parse(s, DefaultMax)
	if err != nil {
		panic(err)
	}
	return m
}

// MarshalJSON renders the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number. Signed values are
// allowed since balances can be negative; input validation lives in Parse.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid money value %q: %w", raw, err)
	}
	*m = Money(d.Round(Scale).Shift(Scale).IntPart())
	return nil
}
