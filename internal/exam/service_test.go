// backend/internal/exam/service_test.go
package exam

import (
	"testing"
	"time"

	"exam-system/internal/models"
)

func scheduledTest(status models.TestStatus, start, end time.Time) models.Test {
	return models.Test{Status: status, StartTime: &start, EndTime: &end}
}

func TestStaleStatusesReconcilesExpiredWindows(t *testing.T) {
	start := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []models.Test{
		scheduledTest(models.StatusAssigned, start, end), // window open, should activate
		scheduledTest(models.StatusActive, start, end),   // window passed, should stop
		scheduledTest(models.StatusActive, start, end),   // still in window, untouched
		{Status: models.StatusGenerated},                 // no schedule, untouched
		scheduledTest(models.StatusCompleted, start, end),
	}
	tests[1].EndTime = ptrTime(start.Add(30 * time.Minute))

	now := start.Add(45 * time.Minute)
	stale := staleStatuses(tests, now)

	if len(stale) != 2 {
		t.Fatalf("expected 2 stale entries, got %d: %v", len(stale), stale)
	}
	if stale[0] != models.StatusActive {
		t.Errorf("assigned test in window: got %q, want %q", stale[0], models.StatusActive)
	}
	if stale[1] != models.StatusStopped {
		t.Errorf("active test past end: got %q, want %q", stale[1], models.StatusStopped)
	}
}

func TestStaleStatusesEmptyWhenNothingChanges(t *testing.T) {
	start := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []models.Test{
		scheduledTest(models.StatusActive, start, end),
		scheduledTest(models.StatusAssigned, start, end),
		{Status: models.StatusGenerated},
	}

	// Before the window opens nothing should transition.
	stale := staleStatuses(tests, start.Add(-time.Minute))
	if len(stale) != 0 {
		t.Fatalf("expected no stale entries before the window, got %v", stale)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
