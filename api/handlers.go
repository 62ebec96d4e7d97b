/*
handlers.go - HTTP API handlers for the payroll calculation engine

PURPOSE:
  Exposes the calculators via REST. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic - no tax or leave math
  lives here.

ENDPOINTS:
  Bracket sets:
    GET    /api/bracket-sets                 List configured fiscal years
    POST   /api/bracket-sets                 Create/replace a fiscal year
    GET    /api/bracket-sets/{year}          Get one configuration
    POST   /api/bracket-sets/{year}/activate Activate a configuration
    POST   /api/bracket-sets/{year}/deactivate

  Tax:
    POST   /api/tax/compute                  Evaluate gross -> tax
    GET    /api/runs                         Recorded payroll runs

  Leave:
    GET    /api/leave/policy                 Organization policy
    PUT    /api/leave/policy                 Replace policy
    GET    /api/employees                    List employees
    POST   /api/employees                    Create employee
    GET    /api/employees/{id}/balances      An employee's balances

  Admin:
    POST   /api/admin/balances/generate      Batch balance regeneration

ERROR HANDLING:
  Errors map to HTTP status by taxonomy:
  - 400: invalid input (caller bug)
  - 404: missing record
  - 422: broken configuration
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Automated annual generation
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store}
}

// =============================================================================
// BRACKET SET HANDLERS
// =============================================================================

// ListBracketSets returns all configured fiscal years.
func (h *Handler) ListBracketSets(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListBracketSets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bracket sets", err)
		return
	}

	dtos := make([]BracketSetDTO, 0, len(records))
	for _, rec := range records {
		dto, err := toBracketSetDTO(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt bracket set configuration", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBracketSet returns one fiscal year's configuration.
func (h *Handler) GetBracketSet(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.GetBracketSet(r.Context(), year)
	if err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Bracket set not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get bracket set", err)
		return
	}

	dto, err := toBracketSetDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt bracket set configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveBracketSet creates or replaces a fiscal year's configuration.
// Structural violations are rejected; monotonicity findings come back as
// warnings in the response so the operator sees the flag.
func (h *Handler) SaveBracketSet(w http.ResponseWriter, r *http.Request) {
	var req SaveBracketSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	set, warnings, err := factory.FromBracketSetJSON(req.Config)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	configJSON, err := factory.MarshalBracketSet(set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize bracket set", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.Store.SaveBracketSet(r.Context(), set.FiscalYear, configJSON, active); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save bracket set", err)
		return
	}

	writeJSON(w, http.StatusCreated, BracketSetDTO{
		FiscalYear: set.FiscalYear,
		Active:     active,
		Config:     factory.ToBracketSetJSON(set),
		Warnings:   warningsToStrings(warnings),
	})
}

// ActivateBracketSet marks a fiscal year's configuration active.
func (h *Handler) ActivateBracketSet(w http.ResponseWriter, r *http.Request) {
	h.setBracketSetActive(w, r, true)
}

// DeactivateBracketSet marks a fiscal year's configuration inactive.
func (h *Handler) DeactivateBracketSet(w http.ResponseWriter, r *http.Request) {
	h.setBracketSetActive(w, r, false)
}

func (h *Handler) setBracketSetActive(w http.ResponseWriter, r *http.Request, active bool) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	if err := h.Store.SetBracketSetActive(r.Context(), year, active); err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Bracket set not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update bracket set", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fiscal_year": year, "active": active})
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// ComputeTax evaluates a gross amount against a fiscal year's active
// bracket set. With record_run set, the run is persisted together with a
// snapshot of the configuration it used.
func (h *Handler) ComputeTax(w http.ResponseWriter, r *http.Request) {
	var req ComputeTaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	gross, err := payroll.ParseMoney(req.GrossAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := h.Store.GetActiveBracketSet(r.Context(), req.FiscalYear)
	if err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "No active bracket set for fiscal year", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load bracket set", err)
		return
	}

	set, _, err := factory.ParseBracketSet(rec.ConfigJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt bracket set configuration", err)
		return
	}

	assessment, err := tax.ComputeTaxDetail(gross, set)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ComputeTaxResponse{
		FiscalYear:  set.FiscalYear,
		GrossAmount: gross.String(),
		GrossUnits:  assessment.GrossUnits.String(),
		Exempt:      assessment.Exempt,
		TaxAmount:   assessment.Total.String(),
		Breakdown:   toBracketLineDTOs(assessment.Lines),
	}

	if req.RecordRun {
		run := sqlite.RunRecord{
			ID:                  uuid.NewString(),
			FiscalYear:          set.FiscalYear,
			GrossAmount:         gross.String(),
			TaxAmount:           assessment.Total.String(),
			BracketSnapshotJSON: rec.ConfigJSON,
		}
		if err := h.Store.RecordRun(r.Context(), run); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to record payroll run", err)
			return
		}
		resp.RunID = run.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRuns returns recent payroll runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = RunDTO{
			ID:          run.ID,
			FiscalYear:  run.FiscalYear,
			GrossAmount: run.GrossAmount,
			TaxAmount:   run.TaxAmount,
			CreatedAt:   run.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVE POLICY HANDLERS
// =============================================================================

// GetLeavePolicy returns the organization's leave policy.
func (h *Handler) GetLeavePolicy(w http.ResponseWriter, r *http.Request) {
	configJSON, err := h.Store.GetLeavePolicy(r.Context())
	if err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Leave policy not configured", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get leave policy", err)
		return
	}

	var config factory.LeavePolicyJSON
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt leave policy configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, LeavePolicyDTO{Config: config})
}

// PutLeavePolicy replaces the organization's leave policy.
func (h *Handler) PutLeavePolicy(w http.ResponseWriter, r *http.Request) {
	var req LeavePolicyDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	raw, err := json.Marshal(req.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize policy", err)
		return
	}

	// Validate at the boundary before anything is persisted.
	policy, err := factory.ParseLeavePolicy(string(raw))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	configJSON, err := factory.MarshalLeavePolicy(policy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize policy", err)
		return
	}
	if err := h.Store.SaveLeavePolicy(r.Context(), configJSON); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave policy", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, emp := range employees {
		dtos[i] = toEmployeeDTO(emp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Employee id is required", nil)
		return
	}

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	unused := req.UnusedPriorDays
	if unused == "" {
		unused = "0"
	}
	if _, err := decimal.NewFromString(unused); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unused_prior_days (decimal string)", err)
		return
	}

	emp := sqlite.Employee{
		ID:              req.ID,
		Name:            req.Name,
		HireDate:        hireDate,
		UnusedPriorDays: unused,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployeeBalances returns an employee's generated balances.
func (h *Handler) GetEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}

	records, err := h.Store.ListBalancesByEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toBalanceRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GenerateBalances runs batch balance regeneration for a year. Successes
// are upserted; failures are reported per employee alongside them - one
// malformed record never aborts the batch.
func (h *Handler) GenerateBalances(w http.ResponseWriter, r *http.Request) {
	var req GenerateBalancesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.runGeneration(r.Context(), req.Year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) runGeneration(ctx context.Context, year int) (*GenerateBalancesResponse, error) {
	configJSON, err := h.Store.GetLeavePolicy(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := factory.ParseLeavePolicy(configJSON)
	if err != nil {
		return nil, err
	}

	stored, err := h.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	employees := make([]leave.Employee, len(stored))
	for i, emp := range stored {
		unused, parseErr := decimal.NewFromString(emp.UnusedPriorDays)
		if parseErr != nil {
			// Surface the bad row through the generator's per-item path
			// by leaving the hire date zeroed.
			employees[i] = leave.Employee{ID: emp.ID}
			continue
		}
		employees[i] = leave.Employee{
			ID:                  emp.ID,
			Name:                emp.Name,
			HireDate:            payroll.TimePoint{Time: emp.HireDate},
			UnusedDaysPriorYear: unused,
		}
	}

	generator := leave.NewGenerator(policy)
	result, err := generator.GenerateAnnualBalances(ctx, employees, year)
	if err != nil {
		return nil, err
	}

	resp := &GenerateBalancesResponse{
		Year:      result.Year,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Items:     make([]BatchItemDTO, 0, len(result.Items)),
	}

	for _, item := range result.Items {
		dto := BatchItemDTO{EmployeeID: item.EmployeeID}
		if item.Err != nil {
			dto.Error = item.Err.Error()
			resp.Items = append(resp.Items, dto)
			continue
		}

		rec := sqlite.BalanceRecord{
			ID:              item.Balance.ID,
			EmployeeID:      item.Balance.EmployeeID,
			Year:            item.Balance.Year,
			EntitlementDays: item.Balance.EntitlementDays,
			CarriedOverDays: item.Balance.CarriedOverDays.String(),
			ForfeitedDays:   item.Balance.ForfeitedDays.String(),
		}
		if item.Balance.CarryoverExpiry != nil {
			expiry := item.Balance.CarryoverExpiry.String()
			rec.CarryoverExpiry = &expiry
		}
		if err := h.Store.UpsertBalance(ctx, rec); err != nil {
			dto.Error = "failed to persist balance: " + err.Error()
			resp.Succeeded--
			resp.Failed++
			resp.Items = append(resp.Items, dto)
			continue
		}

		dto.Balance = toBalanceDTO(item.Balance)
		resp.Items = append(resp.Items, dto)
	}

	return resp, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func toBracketSetDTO(rec sqlite.BracketSetRecord) (BracketSetDTO, error) {
	set, warnings, err := factory.ParseBracketSet(rec.ConfigJSON)
	if err != nil {
		return BracketSetDTO{}, err
	}
	return BracketSetDTO{
		FiscalYear: rec.FiscalYear,
		Active:     rec.Active,
		Config:     factory.ToBracketSetJSON(set),
		Warnings:   warningsToStrings(warnings),
		UpdatedAt:  rec.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid fiscal year", err)
		return 0, false
	}
	return year, true
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case payroll.IsClientError(err):
		writeErrorCode(w, http.StatusBadRequest, err.Error(), "invalid_input")
	case payroll.IsConfigError(err):
		writeErrorCode(w, http.StatusUnprocessableEntity, err.Error(), "invalid_configuration")
	case payroll.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, err.Error(), "not_found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeErrorCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
