/*
Package tax implements progressive (marginal) tax-bracket evaluation.

PURPOSE:
  Given a gross amount and an ordered set of marginal brackets, compute the
  total tax owed. Bracket thresholds are expressed in multiples of a base
  unit (a government-indexed monetary value re-published periodically), so
  the same bracket scale survives inflation adjustments - only the base
  unit value changes.

KEY CONCEPTS IN THIS FILE (brackets.go):
  - Bracket: A contiguous range of base-unit amounts taxed at one rate
  - BracketSet: The complete scale for a fiscal year, plus exemption
  - Warning: A suspicious-but-legal configuration finding

INVARIANTS (enforced by Validate):
  1. Brackets are contiguous and non-overlapping:
     brackets[i].ToUnits == brackets[i+1].FromUnits for all i
  2. Exactly one bracket is unbounded (ToUnits == nil), and it is last
  3. Every rate is within [0, 1]
  4. The base unit value is strictly positive

  Non-decreasing rates across brackets (monotonic progressivity) is a
  WARNING, not an error: regressive scales exist in the wild and must not
  be silently rejected, but an operator should see the flag.

BOUNDARY SEMANTICS:
  A bracket covers [FromUnits, ToUnits) - "up to and not including". An
  amount sitting exactly on a boundary is taxed at the NEXT bracket's rate
  for any income above it.

EXAMPLE:
  set := &tax.BracketSet{
      FiscalYear:    2025,
      BaseUnitValue: decimal.NewFromInt(6576),
      ExemptUnits:   decimal.NewFromInt(7),
      Brackets: []tax.Bracket{
          {FromUnits: d(0), ToUnits: dp(7), Rate: d(0)},
          {FromUnits: d(7), ToUnits: dp(10), Rate: d(0.10)},
          {FromUnits: d(10), ToUnits: dp(15), Rate: d(0.15)},
          {FromUnits: d(15), ToUnits: nil, Rate: d(0.24)},
      },
  }

SEE ALSO:
  - evaluate.go: ComputeTax / ComputeTaxDetail
  - factory/config.go: JSON codec and boundary validation
*/
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// BRACKET SET - The complete scale for one fiscal year
// =============================================================================

// Bracket is a contiguous range of base-unit amounts taxed at a single
// marginal rate. ToUnits == nil means unbounded (the top bracket).
type Bracket struct {
	FromUnits decimal.Decimal
	ToUnits   *decimal.Decimal
	Rate      decimal.Decimal
}

// Unbounded returns true for the open-ended top bracket.
func (b Bracket) Unbounded() bool { return b.ToUnits == nil }

// BracketSet is the active tax scale for a fiscal year. Treated as
// immutable by the evaluator; edits happen at the configuration boundary
// and runs snapshot the set they used (see store/sqlite).
type BracketSet struct {
	FiscalYear    int
	BaseUnitValue decimal.Decimal // monetary value of one unit, > 0
	ExemptUnits   decimal.Decimal // gross at or below this many units owes zero tax
	MinorUnits    int32           // currency minor-unit digits (2 = cents)
	Brackets      []Bracket       // ordered, contiguous, last unbounded
}

// NewBracketSet returns a set with the default minor-unit precision.
func NewBracketSet(fiscalYear int, baseUnitValue decimal.Decimal, exemptUnits decimal.Decimal, brackets []Bracket) *BracketSet {
	return &BracketSet{
		FiscalYear:    fiscalYear,
		BaseUnitValue: baseUnitValue,
		ExemptUnits:   exemptUnits,
		MinorUnits:    payroll.DefaultMinorUnits,
		Brackets:      brackets,
	}
}

// =============================================================================
// WARNINGS - Suspicious but legal configurations
// =============================================================================

type WarningCode string

const (
	// WarnNonProgressiveRates flags a rate that decreases from one bracket
	// to the next. Legal, but almost always a data-entry mistake.
	WarnNonProgressiveRates WarningCode = "non_progressive_rates"
)

type Warning struct {
	Code    WarningCode
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Code, w.Message) }

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the structural invariants. Violations return a
// ConfigurationError; monotonicity findings come back as warnings and the
// set remains usable.
func (s *BracketSet) Validate() ([]Warning, error) {
	subject := fmt.Sprintf("bracket set %d", s.FiscalYear)

	if !s.BaseUnitValue.IsPositive() {
		return nil, &payroll.ConfigurationError{Subject: subject, Reason: "base unit value must be positive"}
	}
	if s.ExemptUnits.IsNegative() {
		return nil, &payroll.ConfigurationError{Subject: subject, Reason: "exempt units must not be negative"}
	}
	if len(s.Brackets) == 0 {
		return nil, &payroll.ConfigurationError{Subject: subject, Reason: "at least one bracket is required"}
	}
	if s.Brackets[0].FromUnits.IsNegative() {
		return nil, &payroll.ConfigurationError{Subject: subject, Reason: "first bracket must start at or above zero units"}
	}

	one := decimal.NewFromInt(1)
	var warnings []Warning

	for i, b := range s.Brackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return nil, &payroll.ConfigurationError{
				Subject: subject,
				Reason:  fmt.Sprintf("bracket %d rate %s outside [0,1]", i, b.Rate),
			}
		}

		last := i == len(s.Brackets)-1
		if last {
			if !b.Unbounded() {
				return nil, &payroll.ConfigurationError{Subject: subject, Reason: "last bracket must be unbounded"}
			}
		} else {
			if b.Unbounded() {
				return nil, &payroll.ConfigurationError{
					Subject: subject,
					Reason:  fmt.Sprintf("bracket %d is unbounded but not last", i),
				}
			}
			if !b.ToUnits.GreaterThan(b.FromUnits) {
				return nil, &payroll.ConfigurationError{
					Subject: subject,
					Reason:  fmt.Sprintf("bracket %d is empty or inverted (%s to %s)", i, b.FromUnits, b.ToUnits),
				}
			}
			next := s.Brackets[i+1]
			if !next.FromUnits.Equal(*b.ToUnits) {
				reason := "gap"
				if next.FromUnits.LessThan(*b.ToUnits) {
					reason = "overlap"
				}
				return nil, &payroll.ConfigurationError{
					Subject: subject,
					Reason:  fmt.Sprintf("%s between bracket %d (to %s) and bracket %d (from %s)", reason, i, b.ToUnits, i+1, next.FromUnits),
				}
			}
		}

		if i > 0 && b.Rate.LessThan(s.Brackets[i-1].Rate) {
			warnings = append(warnings, Warning{
				Code:    WarnNonProgressiveRates,
				Message: fmt.Sprintf("bracket %d rate %s is lower than bracket %d rate %s", i, b.Rate, i-1, s.Brackets[i-1].Rate),
			})
		}
	}

	return warnings, nil
}

// minorUnits returns the rounding precision, falling back to the default
// for zero-valued sets built without the constructor.
func (s *BracketSet) minorUnits() int32 {
	if s.MinorUnits <= 0 {
		return payroll.DefaultMinorUnits
	}
	return s.MinorUnits
}
