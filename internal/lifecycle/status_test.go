package lifecycle

import (
	"testing"
	"time"

	"exam-system/internal/models"
)

var (
	t0 = time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2025, 4, 15, 11, 0, 0, 0, time.UTC)
)

func TestNext_Transitions(t *testing.T) {
	cases := []struct {
		name   string
		status models.TestStatus
		start  *time.Time
		end    *time.Time
		now    time.Time
		want   models.TestStatus
	}{
		{"assigned before window", models.StatusAssigned, &t0, &t1, t0.Add(-time.Minute), models.StatusAssigned},
		{"assigned enters window", models.StatusAssigned, &t0, &t1, t0.Add(time.Minute), models.StatusActive},
		{"assigned at window start", models.StatusAssigned, &t0, &t1, t0, models.StatusActive},
		{"assigned at window end", models.StatusAssigned, &t0, &t1, t1, models.StatusActive},
		{"active stays active in window", models.StatusActive, &t0, &t1, t0.Add(30 * time.Minute), models.StatusActive},
		{"active past window", models.StatusActive, &t0, &t1, t1.Add(time.Second), models.StatusStopped},
		{"assigned past window", models.StatusAssigned, &t0, &t1, t1.Add(time.Hour), models.StatusStopped},
		{"generated never moves", models.StatusGenerated, &t0, &t1, t0.Add(time.Minute), models.StatusGenerated},
		{"stopped is terminal", models.StatusStopped, &t0, &t1, t0.Add(time.Minute), models.StatusStopped},
		{"completed is terminal", models.StatusCompleted, &t0, &t1, t1.Add(time.Hour), models.StatusCompleted},
		{"no schedule no move", models.StatusAssigned, nil, nil, t0, models.StatusAssigned},
		{"missing end no move", models.StatusAssigned, &t0, nil, t1.Add(time.Hour), models.StatusAssigned},
	}

	for _, tc := range cases {
		got := Next(tc.status, tc.start, tc.end, tc.now)
		if got != tc.want {
			t.Errorf("%s: Next(%s) = %s, want %s", tc.name, tc.status, got, tc.want)
		}
	}
}

func TestNext_Idempotent(t *testing.T) {
	statuses := []models.TestStatus{
		models.StatusGenerated, models.StatusAssigned, models.StatusActive,
		models.StatusStopped, models.StatusCompleted,
	}
	instants := []time.Time{t0.Add(-time.Minute), t0, t0.Add(30 * time.Minute), t1, t1.Add(time.Minute)}

	for _, status := range statuses {
		for _, now := range instants {
			once := Next(status, &t0, &t1, now)
			twice := Next(once, &t0, &t1, now)
			if once != twice {
				t.Errorf("Next not idempotent: %s at %v gave %s then %s", status, now, once, twice)
			}
		}
	}
}
