/*
scheduler.go - Automated annual balance generation

PURPOSE:
  Periodically checks whether leave balances exist for the current year
  and, when a new fiscal year begins, runs batch generation once so every
  employee starts the year with a balance row.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Skips years that already have balances (the admin endpoint remains
    the way to force a regeneration)
  - Skips silently while no leave policy is configured
  - Per-employee failures are logged and left for the admin endpoint;
    the scheduler never retries on its own

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewAnnualScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateBalances endpoint (manual trigger)
  - leave/generator.go: The batch operation itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// AnnualScheduler generates leave balances at the turn of each year.
type AnnualScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAnnualScheduler creates a new scheduler.
func NewAnnualScheduler(store *sqlite.Store, handler *Handler) *AnnualScheduler {
	return &AnnualScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AnnualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AnnualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AnnualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.checkAndGenerate()

	for {
		select {
		case <-as.ticker.C:
			as.checkAndGenerate()
		case <-as.stop:
			return
		}
	}
}

func (as *AnnualScheduler) checkAndGenerate() {
	ctx := context.Background()
	year := payroll.Today().Year()

	done, err := as.Store.HasBalancesForYear(ctx, year)
	if err != nil {
		log.Printf("[Scheduler] Failed to check balances for %d: %v", year, err)
		return
	}
	if done {
		return
	}

	if _, err := as.Store.GetLeavePolicy(ctx); err != nil {
		if payroll.IsNotFound(err) {
			// Nothing to do until the organization configures a policy.
			return
		}
		log.Printf("[Scheduler] Failed to load leave policy: %v", err)
		return
	}

	log.Printf("[Scheduler] Generating leave balances for %d", year)

	resp, err := as.Handler.runGeneration(ctx, year)
	if err != nil {
		log.Printf("[Scheduler] Generation for %d failed: %v", year, err)
		return
	}

	log.Printf("[Scheduler] Year %d: %d generated, %d failed, %d skipped",
		year, resp.Succeeded, resp.Failed, resp.Skipped)
	for _, item := range resp.Items {
		if item.Error != "" {
			log.Printf("[Scheduler] Employee %s: %s", item.EmployeeID, item.Error)
		}
	}
}
