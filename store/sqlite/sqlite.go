/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Persists everything the calculators treat as external: bracket-set
  configurations, the organization's leave policy, employee records,
  generated leave balances, and payroll runs. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  bracket_sets:   One row per fiscal year, config stored as JSON.
                  Edits are in-place; LAST WRITER WINS - the calculators
                  assume no transactional guarantee on config edits.
  payroll_runs:   One row per tax computation, with a SNAPSHOT of the
                  bracket-set JSON that was active at the time. Historical
                  runs are recomputed against the snapshot, never against
                  a later edit of the year's configuration.
  leave_policies: The organization's single leave policy, JSON.
  employees:      Hire date and last year's unused days - the tenure
                  inputs for batch generation.
  leave_balances: One derived row per (employee_id, year). Written via
                  UPSERT: batch regeneration replaces the row wholesale.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control would handle this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - factory/config.go: The JSON documents stored here
  - api/handlers.go: The only caller
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/payroll"
)

// Store implements persistence for configurations, employees, balances,
// and payroll runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Tax bracket sets (one per fiscal year, JSON config, in-place edits)
	CREATE TABLE IF NOT EXISTS bracket_sets (
		fiscal_year INTEGER PRIMARY KEY,
		config_json TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Payroll runs (append-only; each run snapshots the bracket set it used)
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		fiscal_year INTEGER NOT NULL,
		gross_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		bracket_snapshot_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payroll_runs_year
		ON payroll_runs(fiscal_year);
	CREATE INDEX IF NOT EXISTS idx_payroll_runs_created
		ON payroll_runs(created_at DESC);

	-- Leave policy (single organization-wide row)
	CREATE TABLE IF NOT EXISTS leave_policies (
		id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Employees (tenure inputs for balance generation)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		unused_prior_days TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Leave balances (derived; regenerated wholesale via upsert)
	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		entitlement_days INTEGER NOT NULL,
		carried_over_days TEXT NOT NULL,
		forfeited_days TEXT NOT NULL,
		carryover_expiry TEXT,
		generated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_balances_year
		ON leave_balances(year);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BRACKET SETS
// =============================================================================

// BracketSetRecord is a stored bracket-set configuration.
type BracketSetRecord struct {
	FiscalYear int
	ConfigJSON string
	Active     bool
	UpdatedAt  time.Time
}

// SaveBracketSet inserts or replaces the configuration for a fiscal year.
// Edits are in-place: last writer wins.
func (s *Store) SaveBracketSet(ctx context.Context, fiscalYear int, configJSON string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bracket_sets (fiscal_year, config_json, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fiscal_year) DO UPDATE SET
			config_json = excluded.config_json,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, fiscalYear, configJSON, boolToInt(active), now, now)
	if err != nil {
		return fmt.Errorf("failed to save bracket set: %w", err)
	}
	return nil
}

// GetBracketSet returns the configuration for a fiscal year, active or not.
func (s *Store) GetBracketSet(ctx context.Context, fiscalYear int) (*BracketSetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT fiscal_year, config_json, active, updated_at
		FROM bracket_sets WHERE fiscal_year = ?
	`, fiscalYear)
	return scanBracketSet(row)
}

// GetActiveBracketSet returns the active configuration for a fiscal year.
// Returns ErrNotFound when the year is unconfigured or deactivated.
func (s *Store) GetActiveBracketSet(ctx context.Context, fiscalYear int) (*BracketSetRecord, error) {
	rec, err := s.GetBracketSet(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, payroll.ErrNotFound
	}
	return rec, nil
}

// SetBracketSetActive toggles the active flag for a fiscal year.
func (s *Store) SetBracketSetActive(ctx context.Context, fiscalYear int, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE bracket_sets SET active = ?, updated_at = ? WHERE fiscal_year = ?
	`, boolToInt(active), time.Now().UTC().Format(time.RFC3339), fiscalYear)
	if err != nil {
		return fmt.Errorf("failed to update bracket set: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return payroll.ErrNotFound
	}
	return nil
}

// ListBracketSets returns all configured fiscal years, newest first.
func (s *Store) ListBracketSets(ctx context.Context) ([]BracketSetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT fiscal_year, config_json, active, updated_at
		FROM bracket_sets ORDER BY fiscal_year DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket sets: %w", err)
	}
	defer rows.Close()

	var records []BracketSetRecord
	for rows.Next() {
		rec, err := scanBracketSet(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBracketSet(row rowScanner) (*BracketSetRecord, error) {
	var rec BracketSetRecord
	var active int
	var updatedAt string
	if err := row.Scan(&rec.FiscalYear, &rec.ConfigJSON, &active, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, payroll.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket set: %w", err)
	}
	rec.Active = active != 0
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

// RunRecord is one recorded tax computation with its bracket-set snapshot.
type RunRecord struct {
	ID                  string
	FiscalYear          int
	GrossAmount         string
	TaxAmount           string
	BracketSnapshotJSON string
	CreatedAt           time.Time
}

// RecordRun appends a payroll run. Append-only: runs are never edited, so
// the snapshot stays an accurate record of what the computation used.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_runs (id, fiscal_year, gross_amount, tax_amount, bracket_snapshot_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.FiscalYear, run.GrossAmount, run.TaxAmount, run.BracketSnapshotJSON,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record payroll run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fiscal_year, gross_amount, tax_amount, bracket_snapshot_json, created_at
		FROM payroll_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var createdAt string
		if err := rows.Scan(&run.ID, &run.FiscalYear, &run.GrossAmount, &run.TaxAmount,
			&run.BracketSnapshotJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// LEAVE POLICY
// =============================================================================

// leavePolicyKey is the fixed row key: one policy per organization.
const leavePolicyKey = "default"

// SaveLeavePolicy replaces the organization's leave policy (last writer wins).
func (s *Store) SaveLeavePolicy(ctx context.Context, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_policies (id, config_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, leavePolicyKey, configJSON, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save leave policy: %w", err)
	}
	return nil
}

// GetLeavePolicy returns the organization's leave policy JSON.
func (s *Store) GetLeavePolicy(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM leave_policies WHERE id = ?", leavePolicyKey,
	).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return "", payroll.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get leave policy: %w", err)
	}
	return configJSON, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// Employee is a stored employee record.
type Employee struct {
	ID              string
	Name            string
	HireDate        time.Time
	UnusedPriorDays string // decimal string
	CreatedAt       time.Time
}

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, hire_date, unused_prior_days, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date,
			unused_prior_days = excluded.unused_prior_days
	`, emp.ID, emp.Name, emp.HireDate.Format("2006-01-02"), emp.UnusedPriorDays,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee returns a single employee, or ErrNotFound.
func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, hire_date, unused_prior_days, created_at
		FROM employees WHERE id = ?
	`, id)

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, payroll.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// ListEmployees returns all employees ordered by ID.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, hire_date, unused_prior_days, created_at
		FROM employees ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (*Employee, error) {
	var emp Employee
	var hireDate, createdAt string
	if err := row.Scan(&emp.ID, &emp.Name, &hireDate, &emp.UnusedPriorDays, &createdAt); err != nil {
		return nil, err
	}
	emp.HireDate, _ = time.Parse("2006-01-02", hireDate)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// =============================================================================
// LEAVE BALANCES
// =============================================================================

// BalanceRecord is a stored leave balance row.
type BalanceRecord struct {
	ID              string
	EmployeeID      string
	Year            int
	EntitlementDays int
	CarriedOverDays string  // decimal string
	ForfeitedDays   string  // decimal string
	CarryoverExpiry *string // ISO date, nil when no expiry
	GeneratedAt     time.Time
}

// UpsertBalance writes a balance row keyed (employee_id, year). Batch
// regeneration replaces existing rows wholesale.
func (s *Store) UpsertBalance(ctx context.Context, rec BalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_balances
			(id, employee_id, year, entitlement_days, carried_over_days, forfeited_days, carryover_expiry, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			id = excluded.id,
			entitlement_days = excluded.entitlement_days,
			carried_over_days = excluded.carried_over_days,
			forfeited_days = excluded.forfeited_days,
			carryover_expiry = excluded.carryover_expiry,
			generated_at = excluded.generated_at
	`, rec.ID, rec.EmployeeID, rec.Year, rec.EntitlementDays, rec.CarriedOverDays,
		rec.ForfeitedDays, rec.CarryoverExpiry, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// ListBalancesByEmployee returns an employee's balances, newest year first.
func (s *Store) ListBalancesByEmployee(ctx context.Context, employeeID string) ([]BalanceRecord, error) {
	return s.queryBalances(ctx, `
		SELECT id, employee_id, year, entitlement_days, carried_over_days, forfeited_days, carryover_expiry, generated_at
		FROM leave_balances WHERE employee_id = ? ORDER BY year DESC
	`, employeeID)
}

// ListBalancesByYear returns every balance generated for a year.
func (s *Store) ListBalancesByYear(ctx context.Context, year int) ([]BalanceRecord, error) {
	return s.queryBalances(ctx, `
		SELECT id, employee_id, year, entitlement_days, carried_over_days, forfeited_days, carryover_expiry, generated_at
		FROM leave_balances WHERE year = ? ORDER BY employee_id ASC
	`, year)
}

// HasBalancesForYear reports whether any balance exists for a year. Used
// by the scheduler to avoid regenerating a year it already processed.
func (s *Store) HasBalancesForYear(ctx context.Context, year int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_balances WHERE year = ?", year,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) queryBalances(ctx context.Context, query string, args ...any) ([]BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var records []BalanceRecord
	for rows.Next() {
		var rec BalanceRecord
		var generatedAt string
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Year, &rec.EntitlementDays,
			&rec.CarriedOverDays, &rec.ForfeitedDays, &rec.CarryoverExpiry, &generatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		rec.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
