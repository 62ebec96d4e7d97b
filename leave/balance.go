package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// BALANCE - One derived row per employee per year
// =============================================================================

// Balance is the generated leave record for an employee-year. It is
// DERIVED: regenerated wholesale by the batch operation, never mutated
// incrementally by individual leave requests (those live elsewhere).
type Balance struct {
	ID         string
	EmployeeID string
	Year       int

	EntitlementDays int
	CarriedOverDays decimal.Decimal
	ForfeitedDays   decimal.Decimal
	CarryoverExpiry *payroll.TimePoint // nil when carryover is disabled

	GeneratedAt payroll.TimePoint
}

// TotalDays is the usable balance at the start of the year, before any
// carried days expire.
func (b Balance) TotalDays() decimal.Decimal {
	return decimal.NewFromInt(int64(b.EntitlementDays)).Add(b.CarriedOverDays)
}
