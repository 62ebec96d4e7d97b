/*
Package payroll provides the shared kernel for the payroll calculation engine.

PURPOSE:
  This package contains the primitive types every calculator builds on:
  monetary amounts, day-granular dates, and the error taxonomy. Whether
  evaluating tax brackets or generating leave balances, the same precision
  and validation rules apply.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: A monetary amount backed by decimal.Decimal
  - Rounding: round-half-up at currency minor-unit precision

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors.
     Payroll correctness depends on exact arithmetic - a cent off in a
     tax amount is a compliance problem, not a rounding quirk.
  2. Explicit rounding: Amounts are rounded exactly once, at the end of
     a calculation, using a single documented rule (round-half-up).
  3. No currency formatting: Display formatting belongs to the caller.

ROUNDING RULE:
  All currency results use round-half-up at minor-unit precision
  (e.g., 657.605 -> 657.61 with two minor-unit digits). The rule is
  applied consistently and covered by tests; changing it changes payroll
  outputs and requires a deliberate decision.

SEE ALSO:
  - time.go: Day-granular date type
  - errors.go: Error taxonomy (invalid input vs bad configuration)
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount with exact decimal arithmetic
// =============================================================================

// Money is a monetary amount. The currency itself is ambient (one currency
// per organization); Money only carries the value.
type Money struct {
	Value decimal.Decimal
}

// DefaultMinorUnits is the number of minor-unit digits used when a
// configuration does not specify one (2 = cents).
const DefaultMinorUnits int32 = 2

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Value: d}
}

// ParseMoney parses a decimal string ("657.60"). Returns an InvalidInputError
// for malformed input.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &InvalidInputError{Field: "amount", Reason: "not a decimal number: " + s}
	}
	return Money{Value: d}, nil
}

func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Value: m.Value.Div(s)} }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) Equal(o Money) bool          { return m.Value.Equal(o.Value) }
func (m Money) String() string              { return m.Value.String() }

// RoundMinorUnit rounds to the given number of minor-unit digits using
// round-half-up. Tax amounts are never negative, so decimal's half-away-
// from-zero rounding is exactly half-up here.
func (m Money) RoundMinorUnit(minorUnits int32) Money {
	return Money{Value: m.Value.Round(minorUnits)}
}
