/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON bracket-set and leave-policy definitions into the
  strongly-typed structures the calculators consume. This is the boundary
  where loosely-typed configuration is validated - nothing malformed gets
  past the factory, so the calculators can trust their inputs.

WHY JSON?
  - Non-developers configure fiscal years and leave rules
  - Easy integration with an admin UI
  - Database storage of configurations (and of per-run snapshots)

PRECISION:
  All decimal fields travel as STRINGS ("6576", "0.10"). Parsing JSON
  numbers through float64 would corrupt exactly the values payroll must
  keep exact.

JSON SCHEMA (bracket set):
  {
    "fiscal_year": 2025,
    "base_unit_value": "6576",
    "exempt_units": "7",
    "minor_units": 2,
    "brackets": [
      {"from_units": "0", "to_units": "7", "rate": "0"},
      {"from_units": "7", "to_units": "10", "rate": "0.10"},
      {"from_units": "10", "to_units": "15", "rate": "0.15"},
      {"from_units": "15", "rate": "0.24"}
    ]
  }

  An absent "to_units" marks the unbounded top bracket.

JSON SCHEMA (leave policy):
  {
    "base_days_per_year": 20,
    "bonus_days_per_threshold": 1,
    "seniority_threshold_years": 5,
    "allow_carryover": true,
    "max_carryover_days": 5,
    "carryover_expiry_months": 3
  }

SEE ALSO:
  - tax/brackets.go: BracketSet invariants enforced after parsing
  - leave/policy.go: Policy validation
  - store/sqlite: Stores these JSON documents verbatim
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BracketSetJSON is the wire/storage representation of a tax bracket set.
type BracketSetJSON struct {
	FiscalYear    int           `json:"fiscal_year"`
	BaseUnitValue string        `json:"base_unit_value"`
	ExemptUnits   string        `json:"exempt_units"`
	MinorUnits    *int32        `json:"minor_units,omitempty"` // default 2
	Brackets      []BracketJSON `json:"brackets"`
}

// BracketJSON is one bracket. Omitted to_units = unbounded (top bracket).
type BracketJSON struct {
	FromUnits string  `json:"from_units"`
	ToUnits   *string `json:"to_units,omitempty"`
	Rate      string  `json:"rate"`
}

// LeavePolicyJSON is the wire/storage representation of a leave policy.
type LeavePolicyJSON struct {
	BaseDaysPerYear         int  `json:"base_days_per_year"`
	BonusDaysPerThreshold   int  `json:"bonus_days_per_threshold"`
	SeniorityThresholdYears int  `json:"seniority_threshold_years"`
	AllowCarryover          bool `json:"allow_carryover"`
	MaxCarryoverDays        int  `json:"max_carryover_days,omitempty"`
	CarryoverExpiryMonths   int  `json:"carryover_expiry_months,omitempty"`
}

// =============================================================================
// BRACKET SET CODEC
// =============================================================================

// ParseBracketSet decodes and validates a bracket set. Structural
// violations return an error; monotonicity findings come back as warnings
// with a usable set.
func ParseBracketSet(jsonStr string) (*tax.BracketSet, []tax.Warning, error) {
	var bj BracketSetJSON
	if err := json.Unmarshal([]byte(jsonStr), &bj); err != nil {
		return nil, nil, &payroll.InvalidInputError{Field: "bracket_set", Reason: "malformed JSON: " + err.Error()}
	}
	return FromBracketSetJSON(bj)
}

// FromBracketSetJSON converts the decoded form, then runs full validation.
func FromBracketSetJSON(bj BracketSetJSON) (*tax.BracketSet, []tax.Warning, error) {
	base, err := parseDecimalField("base_unit_value", bj.BaseUnitValue)
	if err != nil {
		return nil, nil, err
	}
	exempt, err := parseDecimalField("exempt_units", bj.ExemptUnits)
	if err != nil {
		return nil, nil, err
	}

	brackets := make([]tax.Bracket, 0, len(bj.Brackets))
	for i, raw := range bj.Brackets {
		from, err := parseDecimalField(fmt.Sprintf("brackets[%d].from_units", i), raw.FromUnits)
		if err != nil {
			return nil, nil, err
		}
		rate, err := parseDecimalField(fmt.Sprintf("brackets[%d].rate", i), raw.Rate)
		if err != nil {
			return nil, nil, err
		}
		b := tax.Bracket{FromUnits: from, Rate: rate}
		if raw.ToUnits != nil {
			to, err := parseDecimalField(fmt.Sprintf("brackets[%d].to_units", i), *raw.ToUnits)
			if err != nil {
				return nil, nil, err
			}
			b.ToUnits = &to
		}
		brackets = append(brackets, b)
	}

	set := tax.NewBracketSet(bj.FiscalYear, base, exempt, brackets)
	if bj.MinorUnits != nil {
		set.MinorUnits = *bj.MinorUnits
	}

	warnings, err := set.Validate()
	if err != nil {
		return nil, nil, err
	}
	return set, warnings, nil
}

// ToBracketSetJSON flattens a set back to its wire form. Round-tripping a
// valid set through ToBracketSetJSON and FromBracketSetJSON yields a set
// that evaluates identically.
func ToBracketSetJSON(set *tax.BracketSet) BracketSetJSON {
	minor := set.MinorUnits
	bj := BracketSetJSON{
		FiscalYear:    set.FiscalYear,
		BaseUnitValue: set.BaseUnitValue.String(),
		ExemptUnits:   set.ExemptUnits.String(),
		MinorUnits:    &minor,
		Brackets:      make([]BracketJSON, 0, len(set.Brackets)),
	}
	for _, b := range set.Brackets {
		raw := BracketJSON{FromUnits: b.FromUnits.String(), Rate: b.Rate.String()}
		if b.ToUnits != nil {
			to := b.ToUnits.String()
			raw.ToUnits = &to
		}
		bj.Brackets = append(bj.Brackets, raw)
	}
	return bj
}

// MarshalBracketSet serializes a set for storage (run snapshots, config
// rows).
func MarshalBracketSet(set *tax.BracketSet) (string, error) {
	data, err := json.Marshal(ToBracketSetJSON(set))
	if err != nil {
		return "", fmt.Errorf("failed to marshal bracket set: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// LEAVE POLICY CODEC
// =============================================================================

// ParseLeavePolicy decodes and validates a leave policy.
func ParseLeavePolicy(jsonStr string) (leave.Policy, error) {
	var pj LeavePolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return leave.Policy{}, &payroll.InvalidInputError{Field: "leave_policy", Reason: "malformed JSON: " + err.Error()}
	}

	policy := leave.Policy{
		BaseDaysPerYear:         pj.BaseDaysPerYear,
		BonusDaysPerThreshold:   pj.BonusDaysPerThreshold,
		SeniorityThresholdYears: pj.SeniorityThresholdYears,
		AllowCarryover:          pj.AllowCarryover,
		MaxCarryoverDays:        pj.MaxCarryoverDays,
		CarryoverExpiryMonths:   pj.CarryoverExpiryMonths,
	}
	if err := policy.Validate(); err != nil {
		return leave.Policy{}, err
	}
	return policy, nil
}

// MarshalLeavePolicy serializes a policy for storage.
func MarshalLeavePolicy(policy leave.Policy) (string, error) {
	data, err := json.Marshal(LeavePolicyJSON{
		BaseDaysPerYear:         policy.BaseDaysPerYear,
		BonusDaysPerThreshold:   policy.BonusDaysPerThreshold,
		SeniorityThresholdYears: policy.SeniorityThresholdYears,
		AllowCarryover:          policy.AllowCarryover,
		MaxCarryoverDays:        policy.MaxCarryoverDays,
		CarryoverExpiryMonths:   policy.CarryoverExpiryMonths,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal leave policy: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimalField(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &payroll.InvalidInputError{Field: field, Reason: "not a decimal number: " + raw}
	}
	return d, nil
}
