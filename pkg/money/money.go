// Package money implements exact two-decimal currency amounts.
//
// Every constructor normalises to two fractional digits using round half-up
// (half away from zero). Arithmetic never goes through binary floating point.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept by Money.
const Places = 2

var ErrInvalidAmount = errors.New("invalid_amount")

// Money is an immutable currency amount with two fractional digits.
// The zero value is 0.00.
type Money struct {
	amount decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money {
	return Money{}
}

// FromDecimal rounds d half-up to two places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{amount: d.Round(Places)}
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -Places)}
}

// Parse accepts "12.34" or "12,34". Extra fractional digits are rounded half-up.
func Parse(raw string) (Money, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Money{}, ErrInvalidAmount
	}
	value = strings.ReplaceAll(value, ",", ".")
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.amount }

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MulRate multiplies by rate and rounds the product half-up to two places.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.amount.Mul(rate))
}

func (m Money) Cmp(other Money) int { return m.amount.Cmp(other.amount) }

func (m Money) Equal(other Money) bool { return m.amount.Equal(other.amount) }

func (m Money) GreaterThan(other Money) bool { return m.amount.GreaterThan(other.amount) }

func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

func (m Money) LessThan(other Money) bool { return m.amount.LessThan(other.amount) }

func (m Money) IsZero() bool { return m.amount.IsZero() }

func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.amount.Shift(Places).IntPart()
}

func (m Money) String() string {
	return m.amount.StringFixed(Places)
}

// Sum adds all amounts exactly.
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.amount)
	}
	return Money{amount: total}
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.GreaterThanOrEqual(b) {
		return a
	}
	return b
}

// Value implements driver.Valuer. Amounts are stored as fixed-point text so
// every dialect round-trips them without float conversion.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	if src == nil {
		m.amount = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.amount = d.Round(Places)
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ErrInvalidAmount
		}
		raw = n.String()
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
