package tax_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func dp(v float64) *decimal.Decimal {
	dec := decimal.NewFromFloat(v)
	return &dec
}

func money(v float64) payroll.Money { return payroll.NewMoney(v) }

// standardSet is the reference scale used throughout:
// base unit 6576, first 7 units exempt,
// [0,7)@0%, [7,10)@10%, [10,15)@15%, [15,inf)@24%
func standardSet() *tax.BracketSet {
	return tax.NewBracketSet(2025, d(6576), d(7), []tax.Bracket{
		{FromUnits: d(0), ToUnits: dp(7), Rate: d(0)},
		{FromUnits: d(7), ToUnits: dp(10), Rate: d(0.10)},
		{FromUnits: d(10), ToUnits: dp(15), Rate: d(0.15)},
		{FromUnits: d(15), ToUnits: nil, Rate: d(0.24)},
	})
}

// =============================================================================
// EVALUATION TESTS
// =============================================================================

func TestComputeTax_ZeroGross(t *testing.T) {
	// GIVEN: Any valid bracket set
	// WHEN: Computing tax on a zero gross amount
	// THEN: Tax is zero, regardless of the exemption threshold

	got, err := tax.ComputeTax(money(0), standardSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero tax, got %v", got)
	}
}

func TestComputeTax_ExemptThreshold(t *testing.T) {
	// GIVEN: Exemption at 7 units (7 * 6576 = 46032)
	// WHEN: Gross is exactly at the threshold
	// THEN: Fully exempt, zero tax

	got, err := tax.ComputeTax(money(7*6576), standardSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero tax at exemption threshold, got %v", got)
	}
}

func TestComputeTax_OneUnitIntoSecondBracket(t *testing.T) {
	// GIVEN: Gross of 8 units (8 * 6576 = 52608)
	// WHEN: Evaluating against the standard scale
	// THEN: Only the 1 unit inside [7,10) is taxed, at 10%:
	//       1 * 6576 * 0.10 = 657.60

	got, err := tax.ComputeTax(money(8*6576), standardSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d(657.60)
	if !got.Value.Equal(want) {
		t.Errorf("expected %v, got %v", want, got.Value)
	}
}

func TestComputeTax_SpansMultipleBrackets(t *testing.T) {
	// GIVEN: Gross of 20 units
	// WHEN: Evaluating against the standard scale
	// THEN: 7@0% + 3@10% + 5@15% + 5@24% = 0 + 0.3 + 0.75 + 1.2 = 2.25 units
	//       2.25 * 6576 = 14796.00

	got, err := tax.ComputeTax(money(20*6576), standardSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := d(14796)
	if !got.Value.Equal(want) {
		t.Errorf("expected %v, got %v", want, got.Value)
	}
}

func TestComputeTax_BoundaryBelongsToLowerBracket(t *testing.T) {
	// GIVEN: Gross exactly at 10 units (a bracket boundary)
	// WHEN: Evaluating
	// THEN: The [10,15) bracket contributes nothing - "up to and not
	//       including" means the boundary amount pays only through the
	//       [7,10) bracket: 3 * 0.10 = 0.3 units = 1972.80

	a, err := tax.ComputeTaxDetail(money(10*6576), standardSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Total.Value.Equal(d(1972.80)) {
		t.Errorf("expected 1972.80, got %v", a.Total.Value)
	}
	for _, line := range a.Lines {
		if line.Bracket.FromUnits.Equal(d(10)) && !line.TaxableUnits.IsZero() {
			t.Errorf("bracket starting at boundary should have no taxable units, got %v", line.TaxableUnits)
		}
	}
}

func TestComputeTax_Monotonic(t *testing.T) {
	// GIVEN: The standard scale
	// WHEN: Sweeping gross amounts upward across every boundary
	// THEN: Tax never decreases (non-decreasing piecewise-linear function)

	set := standardSet()
	prev := decimal.Zero
	for units := 0.0; units <= 30; units += 0.25 {
		got, err := tax.ComputeTax(money(units*6576), set)
		if err != nil {
			t.Fatalf("unexpected error at %v units: %v", units, err)
		}
		if got.Value.LessThan(prev) {
			t.Fatalf("tax decreased at %v units: %v -> %v", units, prev, got.Value)
		}
		prev = got.Value
	}
}

func TestComputeTax_RoundsHalfUp(t *testing.T) {
	// GIVEN: A scale that produces a sub-cent result
	// WHEN: Evaluating
	// THEN: The total is rounded half-up at two minor-unit digits

	set := tax.NewBracketSet(2025, d(1), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: nil, Rate: d(0.125)},
	})

	// 0.05 * 0.125 = 0.00625 -> 0.01
	got, err := tax.ComputeTax(money(0.05), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Value.Equal(d(0.01)) {
		t.Errorf("expected 0.01, got %v", got.Value)
	}
}

func TestComputeTax_NegativeGross(t *testing.T) {
	// GIVEN: A negative gross amount
	// WHEN: Evaluating
	// THEN: Fails with an invalid-input error, never a number

	_, err := tax.ComputeTax(money(-1), standardSet())
	if err == nil {
		t.Fatal("expected error for negative gross")
	}
	if !errors.Is(err, payroll.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	var inputErr *payroll.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Errorf("expected *InvalidInputError, got %T", err)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_Gap(t *testing.T) {
	// GIVEN: A gap between 7 and 8 units
	// WHEN: Validating
	// THEN: ConfigurationError - never silently accepted

	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: dp(7), Rate: d(0)},
		{FromUnits: d(8), ToUnits: nil, Rate: d(0.10)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for gap, got %v", err)
	}
}

func TestValidate_Overlap(t *testing.T) {
	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: dp(7), Rate: d(0)},
		{FromUnits: d(5), ToUnits: nil, Rate: d(0.10)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for overlap, got %v", err)
	}
}

func TestValidate_LastBracketMustBeUnbounded(t *testing.T) {
	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: dp(7), Rate: d(0)},
		{FromUnits: d(7), ToUnits: dp(10), Rate: d(0.10)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bounded last bracket, got %v", err)
	}
}

func TestValidate_UnboundedBracketNotLast(t *testing.T) {
	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: nil, Rate: d(0)},
		{FromUnits: d(7), ToUnits: nil, Rate: d(0.10)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for mid-scale unbounded bracket, got %v", err)
	}
}

func TestValidate_RateOutsideRange(t *testing.T) {
	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: nil, Rate: d(1.5)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for rate > 1, got %v", err)
	}
}

func TestValidate_NonPositiveBaseUnit(t *testing.T) {
	set := tax.NewBracketSet(2025, d(0), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: nil, Rate: d(0.10)},
	})
	_, err := set.Validate()
	if !errors.Is(err, payroll.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for zero base unit, got %v", err)
	}
}

func TestValidate_DecreasingRatesWarnButPass(t *testing.T) {
	// GIVEN: A scale where the rate DROPS from 15% to 10%
	// WHEN: Validating
	// THEN: A warning is flagged but the set stays usable

	set := tax.NewBracketSet(2025, d(6576), d(0), []tax.Bracket{
		{FromUnits: d(0), ToUnits: dp(10), Rate: d(0.15)},
		{FromUnits: d(10), ToUnits: nil, Rate: d(0.10)},
	})

	warnings, err := set.Validate()
	if err != nil {
		t.Fatalf("decreasing rates must not be an error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].Code != tax.WarnNonProgressiveRates {
		t.Errorf("expected %s warning, got %s", tax.WarnNonProgressiveRates, warnings[0].Code)
	}

	// The set still evaluates
	if _, err := tax.ComputeTax(money(20*6576), set); err != nil {
		t.Errorf("set with warning should still evaluate: %v", err)
	}
}
