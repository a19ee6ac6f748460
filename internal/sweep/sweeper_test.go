package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// fakeScheduleStore — ScheduleStore в памяти, повторяющий семантику
// условного UPDATE в MarkQueued.
type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.Schedule
	outcomes  map[uuid.UUID]domain.RunStatus
	failMark  bool
}

func newFakeScheduleStore(schedules ...*domain.Schedule) *fakeScheduleStore {
	s := &fakeScheduleStore{
		schedules: make(map[uuid.UUID]*domain.Schedule),
		outcomes:  make(map[uuid.UUID]domain.RunStatus),
	}
	for _, sched := range schedules {
		s.schedules[sched.ID] = sched
	}
	return s
}

func (s *fakeScheduleStore) ListEnabled(_ context.Context, jobType string, limit int) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Schedule
	for _, sched := range s.schedules {
		if len(out) >= limit {
			break
		}
		if !sched.Enabled {
			continue
		}
		if jobType != "" && sched.JobType != jobType {
			continue
		}
		out = append(out, *sched)
	}
	return out, nil
}

func (s *fakeScheduleStore) MarkQueued(_ context.Context, id uuid.UUID, now time.Time, rearm time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failMark {
		return false, errors.New("db unavailable")
	}

	sched, ok := s.schedules[id]
	if !ok || !sched.Enabled {
		return false, nil
	}
	if sched.LastRunAt != nil && sched.LastRunAt.After(now.Add(-rearm)) {
		return false, nil
	}
	sched.MarkQueued(now)
	return true, nil
}

func (s *fakeScheduleStore) MarkOutcome(_ context.Context, id uuid.UUID, status domain.RunStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return errors.New("not found")
	}
	sched.MarkOutcome(status, message, time.Now().UTC())
	s.outcomes[id] = status
	return nil
}

// fakeDispatcher — Dispatcher, запоминающий постановки.
type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
	known      map[string]bool
	err        error
}

func newFakeDispatcher(types ...string) *fakeDispatcher {
	known := make(map[string]bool)
	for _, t := range types {
		known[t] = true
	}
	return &fakeDispatcher{known: known}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, jobType string, scheduleID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return false, d.err
	}
	if !d.known[jobType] {
		return false, nil
	}
	d.dispatched = append(d.dispatched, scheduleID)
	return true, nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

func TestSweeper_Tick_DispatchesDue(t *testing.T) {
	due := newSchedule("* * * * *")
	notDue := newSchedule("0 0 1 1 *") // 1 января в полночь

	store := newFakeScheduleStore(due, notDue)
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew)

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	n, err := sweeper.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 dispatched, got %d", n)
	}
	if router.count() != 1 || router.dispatched[0] != due.ID {
		t.Error("due schedule should be dispatched")
	}
	if due.LastRunStatus != domain.RunStatusQueued {
		t.Errorf("expected queued status, got %q", due.LastRunStatus)
	}
	if notDue.LastRunStatus != domain.RunStatusNone {
		t.Errorf("not-due schedule must stay untouched, got %q", notDue.LastRunStatus)
	}
}

func TestSweeper_Tick_SecondTickWithinRearm(t *testing.T) {
	s := newSchedule("* * * * *")
	store := newFakeScheduleStore(s)
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew)

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	if n, _ := sweeper.Tick(context.Background(), ""); n != 1 {
		t.Fatalf("first tick should dispatch, got %d", n)
	}

	// Второй тик внутри re-arm интервала — дубля нет
	n, err := sweeper.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("second tick within re-arm must dispatch nothing, got %d", n)
	}
	if router.count() != 1 {
		t.Errorf("expected exactly 1 dispatch total, got %d", router.count())
	}
}

func TestSweeper_Tick_UnknownJobTypeSkipped(t *testing.T) {
	unknown := newSchedule("* * * * *")
	unknown.JobType = "reports.generate"
	known := newSchedule("* * * * *")

	store := newFakeScheduleStore(unknown, known)
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew)

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	n, err := sweeper.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Неизвестный тип не валит проход: известный диспатчится
	if n != 1 {
		t.Errorf("expected 1 dispatched, got %d", n)
	}
	if unknown.LastRunStatus != domain.RunStatusSkipped {
		t.Errorf("unknown job type should be skipped, got %q", unknown.LastRunStatus)
	}
	if known.LastRunStatus != domain.RunStatusQueued {
		t.Errorf("known job type should be queued, got %q", known.LastRunStatus)
	}
}

func TestSweeper_Tick_TransportErrorKeepsQueued(t *testing.T) {
	s := newSchedule("* * * * *")
	store := newFakeScheduleStore(s)
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew)
	router.err = errors.New("broker gone")

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	n, err := sweeper.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("tick must not fail on transport error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 dispatched, got %d", n)
	}

	// Строка остаётся queued: после re-arm интервала расписание
	// снова станет due
	if s.LastRunStatus != domain.RunStatusQueued {
		t.Errorf("schedule should stay queued after transport error, got %q", s.LastRunStatus)
	}
}

func TestSweeper_Tick_StoreErrorIsolatedPerSchedule(t *testing.T) {
	s := newSchedule("* * * * *")
	store := newFakeScheduleStore(s)
	store.failMark = true
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew)

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	n, err := sweeper.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("tick must not fail when one schedule fails: %v", err)
	}
	if n != 0 || router.count() != 0 {
		t.Error("nothing should be dispatched when mark queued fails")
	}
}

func TestSweeper_Tick_JobTypeFilter(t *testing.T) {
	orders := newSchedule("* * * * *")
	products := newSchedule("* * * * *")
	products.JobType = domain.JobTypeProductsSync

	store := newFakeScheduleStore(orders, products)
	router := newFakeDispatcher(domain.JobTypeOrdersFetchNew, domain.JobTypeProductsSync)

	sweeper := New(Config{Store: store, Router: router, Logger: quietLogger()})

	n, err := sweeper.Tick(context.Background(), domain.JobTypeProductsSync)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 dispatched, got %d", n)
	}
	if router.dispatched[0] != products.ID {
		t.Error("only the filtered job type should be dispatched")
	}
}
