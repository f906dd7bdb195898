// backend/internal/lifecycle/sweeper.go
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"exam-system/internal/models"
)

// Store is the slice of persistence the sweeper needs: list every test
// still moving through its lifecycle, and write back a status.
type Store interface {
	TestsInLifecycle() ([]models.Test, error)
	UpdateTestStatus(testID uint, status models.TestStatus) error
}

// Notifier pushes a status transition out to interested clients.
type Notifier interface {
	NotifyStatusChange(test *models.Test, status models.TestStatus)
}

// Sweeper periodically reconciles the status of every assigned or active
// test against the wall clock, independent of any request.
type Sweeper struct {
	store    Store
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

// NewSweeper builds a sweeper. notifier may be nil. The clock is a field so
// tests can drive SweepOnce with fixed instants.
func NewSweeper(store Store, notifier Notifier, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Run drives sweep cycles until ctx is cancelled. Cycles run one at a time
// off a single ticker, so two sweeps can never overlap; a failed cycle is
// logged and the next one fires on schedule.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Status sweeper started, interval %s", s.interval)
	for {
		select {
		case <-ticker.C:
			if err := s.SweepOnce(s.now()); err != nil {
				log.Printf("Sweep cycle failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Status sweeper stopped")
			return
		}
	}
}

// SweepOnce applies the transition function to every test still in its
// lifecycle and persists the changes. One test failing to update does not
// stop the rest of the cycle.
func (s *Sweeper) SweepOnce(now time.Time) error {
	tests, err := s.store.TestsInLifecycle()
	if err != nil {
		return fmt.Errorf("listing scheduled tests: %w", err)
	}

	for i := range tests {
		test := &tests[i]
		next := Next(test.Status, test.StartTime, test.EndTime, now)
		if next == test.Status {
			continue
		}
		if err := s.store.UpdateTestStatus(test.ID, next); err != nil {
			log.Printf("Failed to update status of test %s: %v", test.Name, err)
			continue
		}
		log.Printf("Test %s auto-set to %s", test.Name, next)
		test.Status = next
		if s.notifier != nil {
			s.notifier.NotifyStatusChange(test, next)
		}
	}
	return nil
}
