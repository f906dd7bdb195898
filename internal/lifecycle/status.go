// backend/internal/lifecycle/status.go
package lifecycle

import (
	"time"

	"exam-system/internal/models"
)

// Next maps a test's stored status and time window to the status it should
// hold at the given instant. It is the single transition rule shared by the
// lazy per-request reconciler and the background sweeper: deterministic,
// idempotent, and total over all inputs.
//
// Only scheduled tests move. A test inside its window becomes active; one
// past its window becomes stopped. Everything else, including tests with no
// schedule and the terminal stopped/completed states, is left unchanged.
func Next(status models.TestStatus, start, end *time.Time, now time.Time) models.TestStatus {
	if status != models.StatusAssigned && status != models.StatusActive {
		return status
	}
	if start == nil || end == nil {
		return status
	}

	inWindow := !now.Before(*start) && !now.After(*end)
	switch {
	case inWindow && status != models.StatusActive:
		return models.StatusActive
	case now.After(*end):
		return models.StatusStopped
	default:
		return status
	}
}
