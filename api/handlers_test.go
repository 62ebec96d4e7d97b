package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST HARNESS - Real router, in-memory store
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(NewHandler(store)))
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func intPtr32(v int32) *int32 { return &v }
func strPtr(s string) *string { return &s }

func standardScaleConfig() factory.BracketSetJSON {
	return factory.BracketSetJSON{
		FiscalYear:    2025,
		BaseUnitValue: "6576",
		ExemptUnits:   "7",
		MinorUnits:    intPtr32(2),
		Brackets: []factory.BracketJSON{
			{FromUnits: "0", ToUnits: strPtr("7"), Rate: "0"},
			{FromUnits: "7", ToUnits: strPtr("10"), Rate: "0.10"},
			{FromUnits: "10", ToUnits: strPtr("15"), Rate: "0.15"},
			{FromUnits: "15", Rate: "0.24"},
		},
	}
}

func saveStandardScale(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets",
		SaveBracketSetRequest{Config: standardScaleConfig()}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// BRACKET SET ENDPOINT TESTS
// =============================================================================

func TestAPI_BracketSetLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// Save, then read back
	saveStandardScale(t, srv)

	var got BracketSetDTO
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/bracket-sets/2025", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2025, got.FiscalYear)
	assert.True(t, got.Active)
	assert.Len(t, got.Config.Brackets, 4)

	// Deactivate, compute must now fail with 404
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets/2025/deactivate", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tax/compute",
		ComputeTaxRequest{FiscalYear: 2025, GrossAmount: "1000"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Reactivate
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets/2025/activate", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []BracketSetDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/bracket-sets", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)
}

func TestAPI_SaveBracketSet_RejectsBrokenScale(t *testing.T) {
	srv, _ := newTestServer(t)

	config := standardScaleConfig()
	config.Brackets = config.Brackets[:2] // bounded last bracket

	var errResp ErrorResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets",
		SaveBracketSetRequest{Config: config}, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_configuration", errResp.Code)
}

func TestAPI_SaveBracketSet_SurfacesWarnings(t *testing.T) {
	srv, _ := newTestServer(t)

	config := factory.BracketSetJSON{
		FiscalYear:    2025,
		BaseUnitValue: "6576",
		ExemptUnits:   "0",
		Brackets: []factory.BracketJSON{
			{FromUnits: "0", ToUnits: strPtr("10"), Rate: "0.20"},
			{FromUnits: "10", Rate: "0.10"},
		},
	}

	var got BracketSetDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets",
		SaveBracketSetRequest{Config: config}, &got)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, got.Warnings, 1)
}

// =============================================================================
// TAX ENDPOINT TESTS
// =============================================================================

func TestAPI_ComputeTax(t *testing.T) {
	srv, _ := newTestServer(t)
	saveStandardScale(t, srv)

	// 8 units -> 657.60
	var got ComputeTaxResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tax/compute",
		ComputeTaxRequest{FiscalYear: 2025, GrossAmount: fmt.Sprintf("%d", 8*6576)}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "657.6", got.TaxAmount)
	assert.False(t, got.Exempt)
	assert.NotEmpty(t, got.Breakdown)
	assert.Empty(t, got.RunID)

	// At the exemption threshold -> exempt
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tax/compute",
		ComputeTaxRequest{FiscalYear: 2025, GrossAmount: fmt.Sprintf("%d", 7*6576)}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Exempt)
	assert.Equal(t, "0", got.TaxAmount)
}

func TestAPI_ComputeTax_BadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	saveStandardScale(t, srv)

	var errResp ErrorResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tax/compute",
		ComputeTaxRequest{FiscalYear: 2025, GrossAmount: "-100"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_input", errResp.Code)
}

func TestAPI_ComputeTax_RecordsRunWithSnapshot(t *testing.T) {
	// GIVEN: A computation with record_run set
	// WHEN: The bracket set is edited afterwards
	// THEN: The stored run still carries the configuration it actually
	//       used - history is pinned to the snapshot

	srv, store := newTestServer(t)
	saveStandardScale(t, srv)

	var got ComputeTaxResponse
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tax/compute",
		ComputeTaxRequest{FiscalYear: 2025, GrossAmount: "52608", RecordRun: true}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, got.RunID)

	// Edit the year's configuration in place
	config := standardScaleConfig()
	config.Brackets[3].Rate = "0.50"
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/bracket-sets",
		SaveBracketSetRequest{Config: config}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, got.RunID, runs[0].ID)
	assert.Equal(t, "657.6", runs[0].TaxAmount)
	assert.NotContains(t, runs[0].BracketSnapshotJSON, "0.5")

	var listed []RunDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/runs", nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, listed, 1)
}

// =============================================================================
// LEAVE ENDPOINT TESTS
// =============================================================================

func standardPolicyConfig() factory.LeavePolicyJSON {
	return factory.LeavePolicyJSON{
		BaseDaysPerYear:         20,
		BonusDaysPerThreshold:   1,
		SeniorityThresholdYears: 5,
		AllowCarryover:          true,
		MaxCarryoverDays:        5,
		CarryoverExpiryMonths:   3,
	}
}

func TestAPI_LeavePolicyLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// No policy yet
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/leave/policy", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Invalid policy is refused at the boundary
	bad := standardPolicyConfig()
	bad.SeniorityThresholdYears = 0
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/leave/policy", LeavePolicyDTO{Config: bad}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Valid policy round-trips
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/leave/policy",
		LeavePolicyDTO{Config: standardPolicyConfig()}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got LeavePolicyDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/leave/policy", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, standardPolicyConfig(), got.Config)
}

func TestAPI_GenerateBalances(t *testing.T) {
	// Full flow: policy, employees, batch generation, balance lookup.

	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/leave/policy",
		LeavePolicyDTO{Config: standardPolicyConfig()}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	employees := []CreateEmployeeRequest{
		{ID: "emp-1", Name: "Ada", HireDate: "2015-03-01", UnusedPriorDays: "8"},
		{ID: "emp-2", Name: "Ben", HireDate: "2023-06-15", UnusedPriorDays: "2"},
		{ID: "emp-3", Name: "Dev", HireDate: "2030-01-01"}, // hired after the year
	}
	for _, emp := range employees {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees", emp, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var result GenerateBalancesResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/admin/balances/generate",
		GenerateBalancesRequest{Year: 2025}, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 3)

	// emp-1: 9 completed years -> 21 days; 8 unused -> 5 carried, 3 forfeited
	first := result.Items[0]
	require.NotNil(t, first.Balance)
	assert.Equal(t, 21, first.Balance.EntitlementDays)
	assert.Equal(t, "5", first.Balance.CarriedOverDays)
	assert.Equal(t, "3", first.Balance.ForfeitedDays)
	require.NotNil(t, first.Balance.CarryoverExpiry)
	assert.Equal(t, "2025-04-01", *first.Balance.CarryoverExpiry)

	// emp-3 failed in place
	assert.NotEmpty(t, result.Items[2].Error)
	assert.Nil(t, result.Items[2].Balance)

	// Balances readable per employee
	var balances []BalanceDTO
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-1/balances", nil, &balances)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, balances, 1)
	assert.Equal(t, 2025, balances[0].Year)

	// Regeneration replaces, never duplicates
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/admin/balances/generate",
		GenerateBalancesRequest{Year: 2025}, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/employees/emp-1/balances", nil, &balances)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, balances, 1)
}

func TestAPI_GenerateBalances_NoPolicy(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/balances/generate",
		GenerateBalancesRequest{Year: 2025}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateEmployee_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/employees",
		CreateEmployeeRequest{Name: "no id", HireDate: "2020-01-01"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees",
		CreateEmployeeRequest{ID: "emp-1", HireDate: "01/02/2020"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/employees",
		CreateEmployeeRequest{ID: "emp-1", HireDate: "2020-01-01", UnusedPriorDays: "many"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_EmployeeBalances_UnknownEmployee(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/employees/ghost/balances", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
