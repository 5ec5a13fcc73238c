// Package money is the fixed-point amount type used everywhere a price or
// balance crosses a package boundary. Amounts are 2-decimal-place values with
// an explicit currency code; arithmetic between different currencies fails.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

const scale = 2

type Money struct {
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Currency string          `db:"currency" json:"currency"`
}

func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount.Round(scale), Currency: currency}
}

func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// FromString parses a decimal string like "365.00".
func FromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

func MustFromString(amount, currency string) Money {
	m, err := FromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Percent returns p percent of m, rounded half-up to 2 places.
func (m Money) Percent(p decimal.Decimal) Money {
	v := m.Amount.Mul(p).Div(decimal.NewFromInt(100))
	return Money{Amount: v.Round(scale), Currency: m.Currency}
}

// Mul scales the amount by an integer quantity.
func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(n)), Currency: m.Currency}
}

// Min returns the smaller of the two amounts. Currencies must already match.
func (m Money) Min(o Money) Money {
	if o.Amount.LessThan(m.Amount) {
		return o
	}
	return m
}

func (m Money) LessThan(o Money) bool { return m.Amount.LessThan(o.Amount) }
func (m Money) Equal(o Money) bool    { return m.Currency == o.Currency && m.Amount.Equal(o.Amount) }
func (m Money) IsPositive() bool      { return m.Amount.IsPositive() }
func (m Money) IsNegative() bool      { return m.Amount.IsNegative() }
func (m Money) IsZero() bool          { return m.Amount.IsZero() }
func (m Money) StringFixed() string   { return m.Amount.StringFixed(scale) }

func (m Money) String() string {
	return m.Amount.StringFixed(scale) + " " + m.Currency
}
