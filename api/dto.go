/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DAYS:
  All decimal values travel as STRINGS ("657.60", "2.5"). JSON numbers
  round-trip through float64 and payroll amounts must stay exact.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: BracketSetJSON / LeavePolicyJSON wire forms
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// BRACKET SETS
// =============================================================================

// BracketSetDTO represents a stored bracket set in API responses.
type BracketSetDTO struct {
	FiscalYear int                    `json:"fiscal_year"`
	Active     bool                   `json:"active"`
	Config     factory.BracketSetJSON `json:"config"`
	Warnings   []string               `json:"warnings,omitempty"`
	UpdatedAt  string                 `json:"updated_at,omitempty"`
}

// SaveBracketSetRequest creates or replaces a fiscal year's configuration.
type SaveBracketSetRequest struct {
	Config factory.BracketSetJSON `json:"config"`
	Active *bool                  `json:"active,omitempty"` // default true
}

// =============================================================================
// TAX COMPUTATION
// =============================================================================

// ComputeTaxRequest asks for a tax evaluation against a fiscal year's
// active bracket set.
type ComputeTaxRequest struct {
	FiscalYear  int    `json:"fiscal_year"`
	GrossAmount string `json:"gross_amount"`
	RecordRun   bool   `json:"record_run,omitempty"` // persist a run with a config snapshot
}

// ComputeTaxResponse is the evaluation result with its breakdown.
type ComputeTaxResponse struct {
	FiscalYear  int              `json:"fiscal_year"`
	GrossAmount string           `json:"gross_amount"`
	GrossUnits  string           `json:"gross_units"`
	Exempt      bool             `json:"exempt"`
	TaxAmount   string           `json:"tax_amount"`
	Breakdown   []BracketLineDTO `json:"breakdown,omitempty"`
	RunID       string           `json:"run_id,omitempty"`
}

// BracketLineDTO is one bracket's contribution to the total.
type BracketLineDTO struct {
	FromUnits    string  `json:"from_units"`
	ToUnits      *string `json:"to_units,omitempty"` // absent = unbounded
	Rate         string  `json:"rate"`
	TaxableUnits string  `json:"taxable_units"`
	Tax          string  `json:"tax"`
}

// RunDTO represents a recorded payroll run.
type RunDTO struct {
	ID          string `json:"id"`
	FiscalYear  int    `json:"fiscal_year"`
	GrossAmount string `json:"gross_amount"`
	TaxAmount   string `json:"tax_amount"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// LEAVE POLICY AND BALANCES
// =============================================================================

// LeavePolicyDTO wraps the stored policy wire form.
type LeavePolicyDTO struct {
	Config factory.LeavePolicyJSON `json:"config"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HireDate        string `json:"hire_date"`
	UnusedPriorDays string `json:"unused_prior_days"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HireDate        string `json:"hire_date"`
	UnusedPriorDays string `json:"unused_prior_days,omitempty"` // default "0"
}

// BalanceDTO represents a generated leave balance row.
type BalanceDTO struct {
	EmployeeID      string  `json:"employee_id"`
	Year            int     `json:"year"`
	EntitlementDays int     `json:"entitlement_days"`
	CarriedOverDays string  `json:"carried_over_days"`
	ForfeitedDays   string  `json:"forfeited_days"`
	CarryoverExpiry *string `json:"carryover_expiry,omitempty"`
	GeneratedAt     string  `json:"generated_at,omitempty"`
}

// GenerateBalancesRequest triggers batch regeneration for a year.
type GenerateBalancesRequest struct {
	Year int `json:"year"`
}

// GenerateBalancesResponse reports every per-employee outcome.
type GenerateBalancesResponse struct {
	Year      int              `json:"year"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Items     []BatchItemDTO   `json:"items"`
}

// BatchItemDTO is one employee's outcome: a balance or an error, never both.
type BatchItemDTO struct {
	EmployeeID string      `json:"employee_id"`
	Balance    *BalanceDTO `json:"balance,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBracketLineDTOs(lines []tax.BracketTax) []BracketLineDTO {
	dtos := make([]BracketLineDTO, len(lines))
	for i, line := range lines {
		dto := BracketLineDTO{
			FromUnits:    line.Bracket.FromUnits.String(),
			Rate:         line.Bracket.Rate.String(),
			TaxableUnits: line.TaxableUnits.String(),
			Tax:          line.Tax.String(),
		}
		if line.Bracket.ToUnits != nil {
			to := line.Bracket.ToUnits.String()
			dto.ToUnits = &to
		}
		dtos[i] = dto
	}
	return dtos
}

func toBalanceDTO(b *leave.Balance) *BalanceDTO {
	dto := &BalanceDTO{
		EmployeeID:      b.EmployeeID,
		Year:            b.Year,
		EntitlementDays: b.EntitlementDays,
		CarriedOverDays: b.CarriedOverDays.String(),
		ForfeitedDays:   b.ForfeitedDays.String(),
		GeneratedAt:     b.GeneratedAt.String(),
	}
	if b.CarryoverExpiry != nil {
		expiry := b.CarryoverExpiry.String()
		dto.CarryoverExpiry = &expiry
	}
	return dto
}

func toBalanceRecordDTO(rec sqlite.BalanceRecord) BalanceDTO {
	return BalanceDTO{
		EmployeeID:      rec.EmployeeID,
		Year:            rec.Year,
		EntitlementDays: rec.EntitlementDays,
		CarriedOverDays: rec.CarriedOverDays,
		ForfeitedDays:   rec.ForfeitedDays,
		CarryoverExpiry: rec.CarryoverExpiry,
		GeneratedAt:     rec.GeneratedAt.Format(time.RFC3339),
	}
}

func toEmployeeDTO(emp sqlite.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              emp.ID,
		Name:            emp.Name,
		HireDate:        emp.HireDate.Format("2006-01-02"),
		UnusedPriorDays: emp.UnusedPriorDays,
		CreatedAt:       emp.CreatedAt.Format(time.RFC3339),
	}
}

func warningsToStrings(warnings []tax.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
