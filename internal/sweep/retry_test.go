package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/lock"
)

// fakeWorkItemStore — WorkItemStore в памяти, повторяющий окно
// выборки ListRetryable.
type fakeWorkItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.WorkItem
}

func newFakeWorkItemStore(items ...*domain.WorkItem) *fakeWorkItemStore {
	s := &fakeWorkItemStore{items: make(map[uuid.UUID]*domain.WorkItem)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *fakeWorkItemStore) ListRetryable(_ context.Context, jobType string, oldest, newest time.Time, limit int) ([]domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WorkItem
	for _, item := range s.items {
		if len(out) >= limit {
			break
		}
		if item.JobType != jobType || !item.IsOpen() {
			continue
		}
		if item.CreatedAt.Before(oldest) || item.UpdatedAt.After(newest) {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *fakeWorkItemStore) MarkRequeued(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.items[id]
	item.Attempts++
	item.EnqueuedAt = &now
	item.UpdatedAt = now
	return nil
}

func staleItem(jobType string, scheduleID uuid.UUID, age time.Duration) *domain.WorkItem {
	ts := time.Now().UTC().Add(-age)
	return &domain.WorkItem{
		ID:         uuid.New(),
		JobType:    jobType,
		ScheduleID: scheduleID,
		ShopID:     uuid.New(),
		Status:     domain.WorkItemStatusFailed,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// failedSchedule — расписание с проваленным прошлым запуском,
// достаточно давним, чтобы попасть в окно перевзвода.
func failedSchedule(id uuid.UUID, jobType string) *domain.Schedule {
	ranAt := time.Now().UTC().Add(-time.Hour)
	return &domain.Schedule{
		ID:            id,
		JobType:       jobType,
		Enabled:       true,
		LastRunStatus: domain.RunStatusFailed,
		LastRunAt:     &ranAt,
	}
}

func newTestGuard() *lock.Guard {
	return lock.NewGuard(lock.NewMemoryProvider(), time.Minute, quietLogger())
}

func TestRetrySweeper_RequeuesStaleItems(t *testing.T) {
	scheduleID := uuid.New()
	sched := failedSchedule(scheduleID, domain.JobTypeInventorySnapshot)
	item := staleItem(domain.JobTypeInventorySnapshot, scheduleID, time.Hour)

	store := newFakeWorkItemStore(item)
	schedules := newFakeScheduleStore(sched)
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, err := retry.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued, got %d", n)
	}
	if router.count() != 1 || router.dispatched[0] != scheduleID {
		t.Error("schedule of the stale item should be re-enqueued")
	}
	// Без перехода в queued воркер отбросил бы постановку как дубль
	if sched.LastRunStatus != domain.RunStatusQueued {
		t.Errorf("schedule must be queued before dispatch, got %q", sched.LastRunStatus)
	}
	if item.Attempts != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", item.Attempts)
	}
}

func TestRetrySweeper_MinAgeGate(t *testing.T) {
	// Элемент обновлён только что — возможно, попытка ещё идёт
	scheduleID := uuid.New()
	fresh := staleItem(domain.JobTypeInventorySnapshot, scheduleID, time.Hour)
	fresh.UpdatedAt = time.Now().UTC()

	store := newFakeWorkItemStore(fresh)
	schedules := newFakeScheduleStore(failedSchedule(scheduleID, domain.JobTypeInventorySnapshot))
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, err := retry.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || router.count() != 0 {
		t.Error("items younger than min age must not be requeued")
	}
}

func TestRetrySweeper_LookbackGate(t *testing.T) {
	// Элемент старше окна давности — навсегда вне перевзвода
	scheduleID := uuid.New()
	ancient := staleItem(domain.JobTypeCustomersImport, scheduleID, 48*time.Hour)

	store := newFakeWorkItemStore(ancient)
	schedules := newFakeScheduleStore(failedSchedule(scheduleID, domain.JobTypeCustomersImport))
	router := newFakeDispatcher(domain.JobTypeCustomersImport)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, _ := retry.Run(context.Background())
	if n != 0 {
		t.Errorf("items beyond the lookback window must not be requeued, got %d", n)
	}
}

func TestRetrySweeper_RecentScheduleRunPostponed(t *testing.T) {
	// Расписание запускалось две минуты назад — его элементы могут
	// дорабатываться, перевзвод ждёт следующего прохода
	scheduleID := uuid.New()
	sched := failedSchedule(scheduleID, domain.JobTypeInventorySnapshot)
	ranAt := time.Now().UTC().Add(-2 * time.Minute)
	sched.LastRunAt = &ranAt

	item := staleItem(domain.JobTypeInventorySnapshot, scheduleID, time.Hour)

	store := newFakeWorkItemStore(item)
	schedules := newFakeScheduleStore(sched)
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, err := retry.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || router.count() != 0 {
		t.Error("schedule that ran within min age must not be requeued")
	}
	if item.Attempts != 0 {
		t.Error("item of a postponed schedule must stay untouched")
	}
}

func TestRetrySweeper_DisabledSchedulePostponed(t *testing.T) {
	scheduleID := uuid.New()
	sched := failedSchedule(scheduleID, domain.JobTypeInventorySnapshot)
	sched.Enabled = false

	item := staleItem(domain.JobTypeInventorySnapshot, scheduleID, time.Hour)

	store := newFakeWorkItemStore(item)
	schedules := newFakeScheduleStore(sched)
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, _ := retry.Run(context.Background())
	if n != 0 || router.count() != 0 {
		t.Error("disabled schedule must not be requeued")
	}
}

func TestRetrySweeper_DedupesPerSchedule(t *testing.T) {
	scheduleID := uuid.New()
	a := staleItem(domain.JobTypeInventorySnapshot, scheduleID, time.Hour)
	b := staleItem(domain.JobTypeInventorySnapshot, scheduleID, 2*time.Hour)

	store := newFakeWorkItemStore(a, b)
	schedules := newFakeScheduleStore(failedSchedule(scheduleID, domain.JobTypeInventorySnapshot))
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     newTestGuard(),
		Logger:    quietLogger(),
	})

	n, err := retry.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Оба элемента перевзведены, но постановка одна: обработчик
	// всё равно подхватит все открытые элементы расписания
	if n != 2 {
		t.Errorf("expected 2 items requeued, got %d", n)
	}
	if router.count() != 1 {
		t.Errorf("expected 1 dispatch for the schedule, got %d", router.count())
	}
}

func TestRetrySweeper_KindBusyPostponed(t *testing.T) {
	invSchedID, custSchedID := uuid.New(), uuid.New()
	invItem := staleItem(domain.JobTypeInventorySnapshot, invSchedID, time.Hour)
	custItem := staleItem(domain.JobTypeCustomersImport, custSchedID, time.Hour)

	store := newFakeWorkItemStore(invItem, custItem)
	schedules := newFakeScheduleStore(
		failedSchedule(invSchedID, domain.JobTypeInventorySnapshot),
		failedSchedule(custSchedID, domain.JobTypeCustomersImport),
	)
	router := newFakeDispatcher(domain.JobTypeInventorySnapshot, domain.JobTypeCustomersImport)

	provider := lock.NewMemoryProvider()
	guard := lock.NewGuard(provider, time.Minute, quietLogger())

	// Семейство inventory занято воркером
	token, err := provider.TryAcquire(context.Background(), "sellerdesk:lock:inventory", time.Minute)
	if err != nil || token == nil {
		t.Fatalf("failed to pre-acquire lock: %v", err)
	}
	defer provider.Release(context.Background(), token)

	retry := NewRetrySweeper(RetryConfig{
		Store:     store,
		Schedules: schedules,
		Router:    router,
		Guard:     guard,
		Logger:    quietLogger(),
	})

	n, err := retry.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// inventory отложен, customers перевзведён
	if n != 1 {
		t.Fatalf("expected 1 requeued, got %d", n)
	}
	if invItem.Attempts != 0 {
		t.Error("busy kind must be postponed")
	}
	if custItem.Attempts != 1 {
		t.Error("idle kind should still be swept")
	}
}
