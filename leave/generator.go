/*
generator.go - Annual balance regeneration (batch)

PURPOSE:
  Regenerates one Balance per employee for a fiscal year. Each employee
  is computed independently - there is no shared mutable state between
  iterations - so a failure for one employee (missing hire date, negative
  unused days) never aborts the rest. The caller gets every per-employee
  outcome back, successes and failures side by side.

CANCELLATION:
  The generator stops SUBMITTING new employees once the caller's context
  is canceled; per-employee computation is cheap enough that anything
  already started just finishes. Employees never reached are counted as
  skipped, not failed.

PARALLELISM:
  The loop is embarrassingly parallel but runs sequentially: correctness
  does not depend on parallel execution and a few thousand closed-form
  computations do not justify goroutine plumbing.

SEE ALSO:
  - accrual.go: The per-employee math
  - store/sqlite: Upserts the resulting rows keyed (employee_id, year)
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// BATCH INPUT / OUTPUT
// =============================================================================

// Employee is the input record the surrounding application supplies for
// batch generation. UnusedDaysPriorYear comes from last year's usage
// tracking, which is outside this engine.
type Employee struct {
	ID                  string
	Name                string
	HireDate            payroll.TimePoint
	UnusedDaysPriorYear decimal.Decimal
}

// ItemResult is the outcome for a single employee: either a Balance or an
// error, never both.
type ItemResult struct {
	EmployeeID string
	Balance    *Balance
	Err        error
}

// BatchResult reports every per-employee outcome plus counters.
type BatchResult struct {
	Year      int
	Items     []ItemResult
	Succeeded int
	Failed    int
	Skipped   int // not submitted because the context was canceled
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator regenerates annual balances under a single policy.
type Generator struct {
	Policy Policy
}

func NewGenerator(policy Policy) *Generator {
	return &Generator{Policy: policy}
}

// GenerateAnnualBalances computes entitlement and carryover for every
// employee and returns one ItemResult each. The returned error is non-nil
// only for batch-level problems (invalid policy, bad year) - individual
// employee failures are reported inside the result.
func (g *Generator) GenerateAnnualBalances(ctx context.Context, employees []Employee, year int) (*BatchResult, error) {
	if err := g.Policy.Validate(); err != nil {
		return nil, err
	}
	if year <= 0 {
		return nil, &payroll.InvalidInputError{Field: "year", Reason: fmt.Sprintf("must be positive, got %d", year)}
	}

	result := &BatchResult{Year: year}
	yearStart := payroll.StartOfYear(year)
	now := payroll.Today()

	for i, emp := range employees {
		if ctx.Err() != nil {
			result.Skipped = len(employees) - i
			break
		}

		balance, err := g.generateOne(emp, year, yearStart, now)
		if err != nil {
			result.Items = append(result.Items, ItemResult{EmployeeID: emp.ID, Err: err})
			result.Failed++
			continue
		}
		result.Items = append(result.Items, ItemResult{EmployeeID: emp.ID, Balance: balance})
		result.Succeeded++
	}

	return result, nil
}

func (g *Generator) generateOne(emp Employee, year int, yearStart, now payroll.TimePoint) (*Balance, error) {
	if emp.ID == "" {
		return nil, &payroll.InvalidInputError{Field: "employee.id", Reason: "missing"}
	}
	if emp.HireDate.IsZero() {
		return nil, &payroll.InvalidInputError{Field: "employee.hireDate", Reason: "missing tenure data"}
	}

	// Tenure measured at the start of the generated year. Hires within
	// the year count as zero completed years; hires after the year ends
	// are an input error.
	tenure := payroll.YearsBetween(emp.HireDate, yearStart)
	if tenure < 0 {
		if emp.HireDate.After(payroll.EndOfYear(year)) {
			return nil, &payroll.InvalidInputError{
				Field:  "employee.hireDate",
				Reason: fmt.Sprintf("hired %s, after year %d", emp.HireDate, year),
			}
		}
		tenure = 0
	}

	entitlement, err := ComputeEntitlement(g.Policy, decimal.NewFromInt(int64(tenure)))
	if err != nil {
		return nil, err
	}

	carryover, err := ComputeCarryover(g.Policy, emp.UnusedDaysPriorYear, yearStart)
	if err != nil {
		return nil, err
	}

	return &Balance{
		ID:              uuid.NewString(),
		EmployeeID:      emp.ID,
		Year:            year,
		EntitlementDays: entitlement,
		CarriedOverDays: carryover.CarriedDays,
		ForfeitedDays:   carryover.ForfeitedDays,
		CarryoverExpiry: carryover.ExpiryDate,
		GeneratedAt:     now,
	}, nil
}
