package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"exam-system/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	tests   []models.Test
	listErr error
	updates map[uint]models.TestStatus
}

func newFakeStore(tests ...models.Test) *fakeStore {
	return &fakeStore{tests: tests, updates: make(map[uint]models.TestStatus)}
}

func (f *fakeStore) TestsInLifecycle() ([]models.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	due := make([]models.Test, 0, len(f.tests))
	for _, test := range f.tests {
		if test.Status == models.StatusAssigned || test.Status == models.StatusActive {
			due = append(due, test)
		}
	}
	return due, nil
}

func (f *fakeStore) UpdateTestStatus(testID uint, status models.TestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tests {
		if f.tests[i].ID == testID {
			f.tests[i].Status = status
		}
	}
	f.updates[testID] = status
	return nil
}

func (f *fakeStore) statusOf(testID uint) models.TestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, test := range f.tests {
		if test.ID == testID {
			return test.Status
		}
	}
	return ""
}

func scheduledTest(id uint, status models.TestStatus) models.Test {
	return models.Test{ID: id, Name: "demo", Status: status, StartTime: &t0, EndTime: &t1}
}

func TestSweepOnce_AppliesTransitions(t *testing.T) {
	store := newFakeStore(
		scheduledTest(1, models.StatusAssigned), // inside window -> active
		scheduledTest(2, models.StatusActive),   // inside window -> unchanged
		models.Test{ID: 3, Name: "unsched", Status: models.StatusGenerated},
	)
	sweeper := NewSweeper(store, nil, time.Minute)

	if err := sweeper.SweepOnce(t0.Add(10 * time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.statusOf(1); got != models.StatusActive {
		t.Errorf("test 1: expected active, got %s", got)
	}
	if _, touched := store.updates[2]; touched {
		t.Error("test 2 already active, should not have been written")
	}
	if _, touched := store.updates[3]; touched {
		t.Error("generated test should never be swept")
	}
}

func TestSweepOnce_StopsExpiredTests(t *testing.T) {
	store := newFakeStore(scheduledTest(1, models.StatusActive))
	sweeper := NewSweeper(store, nil, time.Minute)

	if err := sweeper.SweepOnce(t1.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.statusOf(1); got != models.StatusStopped {
		t.Errorf("expected stopped, got %s", got)
	}
}

func TestSweepOnce_StoreFailureIsContained(t *testing.T) {
	store := newFakeStore(scheduledTest(1, models.StatusAssigned))
	store.listErr = errors.New("storage unavailable")
	sweeper := NewSweeper(store, nil, time.Minute)

	if err := sweeper.SweepOnce(t0.Add(time.Minute)); err == nil {
		t.Fatal("expected error from failing store")
	}

	// The next cycle recovers once storage is back.
	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()
	if err := sweeper.SweepOnce(t0.Add(2 * time.Minute)); err != nil {
		t.Fatalf("recovery cycle failed: %v", err)
	}
	if got := store.statusOf(1); got != models.StatusActive {
		t.Errorf("expected active after recovery, got %s", got)
	}
}

// Both reconciliation triggers apply the same transition at the same logical
// instant; whichever lands second must be a no-op, never an oscillation.
func TestSweepOnce_ConcurrentWithLazyReconcile(t *testing.T) {
	store := newFakeStore(scheduledTest(1, models.StatusAssigned))
	sweeper := NewSweeper(store, nil, time.Minute)
	now := t0.Add(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// One goroutine plays the sweeper, the other the lazy path;
			// both reduce to Next + UpdateTestStatus.
			if err := sweeper.SweepOnce(now); err != nil {
				t.Errorf("sweep failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.statusOf(1); got != models.StatusActive {
		t.Errorf("expected a single consistent terminal status active, got %s", got)
	}
	if next := Next(store.statusOf(1), &t0, &t1, now); next != models.StatusActive {
		t.Errorf("reapplying the transition must be a no-op, got %s", next)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.TestStatus
}

func (n *recordingNotifier) NotifyStatusChange(_ *models.Test, status models.TestStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, status)
}

func TestSweepOnce_NotifiesOnTransitionOnly(t *testing.T) {
	store := newFakeStore(
		scheduledTest(1, models.StatusAssigned),
		scheduledTest(2, models.StatusActive),
	)
	notifier := &recordingNotifier{}
	sweeper := NewSweeper(store, notifier, time.Minute)

	if err := sweeper.SweepOnce(t0.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != models.StatusActive {
		t.Errorf("expected one activation event, got %v", notifier.events)
	}
}
