// Package core provides money parsing and handling utilities.
//
// Amounts are kept as decimals with two places so totals never drift the way
// float sums do. Form input is forgiving: anything that does not parse becomes
// zero instead of an error.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Money is a rupee amount with paise precision. The zero value is ₹0.00.
type Money struct {
	amount decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d.Round(moneyPlaces)}
}

func MoneyFromInt(v int64) Money {
	return Money{amount: decimal.NewFromInt(v)}
}

// ParseMoney parses a decimal string such as "1250", "1,250.50" or "₹ 99".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

// ParseAmount is ParseMoney with every failure coerced to zero.
// Negative values are kept as submitted.
func ParseAmount(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}
	}
	return m
}

// ParseCount parses a whole-number count, coercing failures to zero.
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String renders the amount with two decimals, e.g. "1300.00".
func (m Money) String() string {
	return m.amount.StringFixed(moneyPlaces)
}

// Float returns the amount for spreadsheet cells. Use Money for arithmetic.
func (m Money) Float() float64 {
	f, _ := m.amount.Float64()
	return f
}

// SumMoney adds all amounts.
func SumMoney(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}
