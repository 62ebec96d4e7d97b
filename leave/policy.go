/*
Package leave implements annual leave entitlement and carryover calculation.

PURPOSE:
  Given an organization's leave policy and an employee's tenure, compute
  the entitlement for a year; given last year's unused balance, compute
  what carries over, what is forfeited, and when the carried days expire.
  Plus a batch generator that regenerates one balance row per employee
  per fiscal year with partial-failure semantics.

KEY CONCEPTS:
  - Policy: One per organization. Base days plus a seniority bonus that
    steps up each time tenure crosses a threshold, and a carryover rule
    (cap + expiry window).
  - Entitlement: A STEP function of tenure, not continuous accrual.
    With a 5-year threshold, 4 years 11 months earns the same bonus as
    exactly 4 years.
  - Carryover: min(unused, cap) moves into the new year and expires
    CarryoverExpiryMonths after the year starts. Days above the cap are
    forfeited - an expected business outcome surfaced to the caller,
    never an error.

SEE ALSO:
  - accrual.go: ComputeEntitlement / ComputeCarryover
  - generator.go: Batch balance regeneration
  - factory/config.go: JSON codec for Policy
*/
package leave

import (
	"fmt"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// POLICY - Organization-wide leave rules
// =============================================================================

// Policy is the organization's leave ruleset. Mutable at the configuration
// boundary; the calculators treat the value they receive as immutable.
type Policy struct {
	// Entitlement
	BaseDaysPerYear         int
	BonusDaysPerThreshold   int // days added each time tenure crosses the threshold
	SeniorityThresholdYears int

	// Carryover
	AllowCarryover        bool
	MaxCarryoverDays      int // meaningful only when AllowCarryover
	CarryoverExpiryMonths int // usable window from the start of the new year
}

// Validate checks internal consistency. Returns a ConfigurationError on
// violation; a policy that fails here must not reach the calculators.
func (p Policy) Validate() error {
	if p.BaseDaysPerYear < 0 {
		return &payroll.ConfigurationError{Subject: "leave policy", Reason: "base days per year must not be negative"}
	}
	if p.BonusDaysPerThreshold < 0 {
		return &payroll.ConfigurationError{Subject: "leave policy", Reason: "bonus days per threshold must not be negative"}
	}
	if p.SeniorityThresholdYears <= 0 {
		return &payroll.ConfigurationError{
			Subject: "leave policy",
			Reason:  fmt.Sprintf("seniority threshold must be positive, got %d", p.SeniorityThresholdYears),
		}
	}
	if p.AllowCarryover {
		if p.MaxCarryoverDays < 0 {
			return &payroll.ConfigurationError{Subject: "leave policy", Reason: "max carryover days must not be negative"}
		}
		if p.CarryoverExpiryMonths <= 0 {
			return &payroll.ConfigurationError{
				Subject: "leave policy",
				Reason:  fmt.Sprintf("carryover expiry months must be positive, got %d", p.CarryoverExpiryMonths),
			}
		}
	}
	return nil
}
