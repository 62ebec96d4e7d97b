/*
accrual.go - Entitlement and carryover calculation

PURPOSE:
  The two pure functions at the heart of the leave module. Stateless,
  side-effect-free, no persistence - the batch generator and the API
  layer both delegate here.

ENTITLEMENT:
  entitlement = base + floor(tenure / threshold) * bonus

  Tenure is accepted as a decimal number of years so callers holding
  fractional tenure (4.99 years) get the step-function behavior without
  pre-flooring; only COMPLETED years count.

CARRYOVER:
  carried   = min(unusedPriorYear, cap)
  forfeited = unusedPriorYear - carried
  expiry    = yearStart + expiryMonths

  With carryover disabled everything is forfeited and there is no expiry
  date.

SEE ALSO:
  - policy.go: Policy and its validation
  - generator.go: Applies both functions per employee
*/
package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// ENTITLEMENT - Step function of tenure
// =============================================================================

// ComputeEntitlement returns the annual entitlement in days for the given
// tenure. Fractional tenure floors to completed years; negative tenure
// fails with an InvalidInputError.
func ComputeEntitlement(policy Policy, tenureYears decimal.Decimal) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}
	if tenureYears.IsNegative() {
		return 0, &payroll.InvalidInputError{Field: "tenureYears", Reason: "must not be negative"}
	}

	completed := tenureYears.Floor().IntPart()
	steps := completed / int64(policy.SeniorityThresholdYears)
	return policy.BaseDaysPerYear + int(steps)*policy.BonusDaysPerThreshold, nil
}

// =============================================================================
// CARRYOVER - Cap, forfeit, expire
// =============================================================================

// Carryover is the outcome of rolling one year's unused balance into the
// next. ForfeitedDays is informational: losing days above the cap is an
// expected business outcome, not an error.
type Carryover struct {
	CarriedDays   decimal.Decimal
	ForfeitedDays decimal.Decimal
	ExpiryDate    *payroll.TimePoint // nil when carryover is disabled
}

// ComputeCarryover applies the policy's carryover rule to last year's
// unused balance. yearStart is the first day of the NEW year; the expiry
// window counts from there.
func ComputeCarryover(policy Policy, unusedDaysPriorYear decimal.Decimal, yearStart payroll.TimePoint) (Carryover, error) {
	if err := policy.Validate(); err != nil {
		return Carryover{}, err
	}
	if unusedDaysPriorYear.IsNegative() {
		return Carryover{}, &payroll.InvalidInputError{Field: "unusedDaysPriorYear", Reason: "must not be negative"}
	}

	if !policy.AllowCarryover {
		return Carryover{
			CarriedDays:   decimal.Zero,
			ForfeitedDays: unusedDaysPriorYear,
		}, nil
	}

	cap := decimal.NewFromInt(int64(policy.MaxCarryoverDays))
	carried := unusedDaysPriorYear
	if carried.GreaterThan(cap) {
		carried = cap
	}

	expiry := yearStart.AddMonths(policy.CarryoverExpiryMonths)
	return Carryover{
		CarriedDays:   carried,
		ForfeitedDays: unusedDaysPriorYear.Sub(carried),
		ExpiryDate:    &expiry,
	}, nil
}
