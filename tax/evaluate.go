/*
evaluate.go - Marginal tax evaluation

PURPOSE:
  The core computation: map a gross amount through an ordered bracket
  scale to a tax amount. Pure, synchronous, side-effect-free; the caller
  owns persistence and formatting.

ALGORITHM:
  1. Convert gross to unit terms: grossUnits = gross / baseUnitValue
  2. If grossUnits <= exemptUnits, the tax is zero (full exemption)
  3. For each bracket, tax the portion of grossUnits inside
     [FromUnits, min(ToUnits, grossUnits)) at the bracket's rate
  4. Convert accumulated unit-tax back to currency and round half-up
     at minor-unit precision - exactly once, on the total

PROPERTIES (covered by tests):
  - ComputeTax(0, set) == 0 for every valid set
  - Non-decreasing, piecewise-linear in the gross amount
  - A gross sitting exactly on a bracket boundary pays nothing at the
    next bracket's rate ("up to and not including")

SEE ALSO:
  - brackets.go: BracketSet and its invariants
*/
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// ASSESSMENT - Result of a detailed evaluation
// =============================================================================

// BracketTax is the contribution of a single bracket to the total.
type BracketTax struct {
	Bracket      Bracket
	TaxableUnits decimal.Decimal // portion of the gross inside this bracket
	Tax          payroll.Money   // rounded for display; the total is rounded independently
}

// Assessment is the full breakdown of one evaluation. The per-bracket
// lines are display values; Total is the authoritative amount (rounded
// once, on the accumulated sum, so lines may differ from Total by a
// rounding cent).
type Assessment struct {
	FiscalYear int
	Gross      payroll.Money
	GrossUnits decimal.Decimal
	Exempt     bool
	Lines      []BracketTax
	Total      payroll.Money
}

// =============================================================================
// EVALUATION
// =============================================================================

// ComputeTax returns the total tax owed on a gross amount under the given
// bracket set. Fails with an InvalidInputError for negative gross amounts
// and a ConfigurationError for an inconsistent set - never a silently
// wrong number.
func ComputeTax(gross payroll.Money, set *BracketSet) (payroll.Money, error) {
	a, err := ComputeTaxDetail(gross, set)
	if err != nil {
		return payroll.Money{}, err
	}
	return a.Total, nil
}

// ComputeTaxDetail evaluates the set and returns the per-bracket breakdown
// alongside the total.
func ComputeTaxDetail(gross payroll.Money, set *BracketSet) (*Assessment, error) {
	if gross.IsNegative() {
		return nil, &payroll.InvalidInputError{Field: "grossAmount", Reason: "must not be negative"}
	}
	if _, err := set.Validate(); err != nil {
		return nil, err
	}

	grossUnits := gross.Value.Div(set.BaseUnitValue)
	assessment := &Assessment{
		FiscalYear: set.FiscalYear,
		Gross:      gross,
		GrossUnits: grossUnits,
		Total:      payroll.NewMoneyFromInt(0),
	}

	// Zero gross owes zero regardless of the exemption threshold.
	if grossUnits.IsZero() || grossUnits.LessThanOrEqual(set.ExemptUnits) {
		assessment.Exempt = true
		return assessment, nil
	}

	taxUnits := decimal.Zero
	for _, b := range set.Brackets {
		upper := grossUnits
		if !b.Unbounded() && b.ToUnits.LessThan(upper) {
			upper = *b.ToUnits
		}
		if !upper.GreaterThan(b.FromUnits) {
			// Gross never reaches this bracket; ordering means it
			// reaches none of the later ones either.
			break
		}

		portion := upper.Sub(b.FromUnits)
		lineUnits := portion.Mul(b.Rate)
		taxUnits = taxUnits.Add(lineUnits)

		assessment.Lines = append(assessment.Lines, BracketTax{
			Bracket:      b,
			TaxableUnits: portion,
			Tax:          payroll.NewMoneyFromDecimal(lineUnits.Mul(set.BaseUnitValue)).RoundMinorUnit(set.minorUnits()),
		})
	}

	assessment.Total = payroll.NewMoneyFromDecimal(taxUnits.Mul(set.BaseUnitValue)).RoundMinorUnit(set.minorUnits())
	return assessment, nil
}
