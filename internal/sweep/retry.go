package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// Значения по умолчанию для Retry Sweep. Корректные значения
// зависят от латентности задач ниже по течению — в проде
// настраиваются через конфигурацию.
const (
	DefaultRetryLookback = 24 * time.Hour
	DefaultRetryMinAge   = 10 * time.Minute
	DefaultRetryBatch    = 50
)

// LockKindRetry — имя блокировки, сериализующей Retry Sweep
// между репликами планировщика.
const LockKindRetry = "scheduler.retry"

// retryJobTypes — типы задач, порождающие элементы работы.
// Только их хвосты перевзводит Retry Sweep.
var retryJobTypes = []string{
	domain.JobTypeInventorySnapshot,
	domain.JobTypeCustomersImport,
}

// WorkItemStore — операции хранилища элементов работы,
// нужные Retry Sweep. Реализуется repo.WorkItemRepo.
type WorkItemStore interface {
	ListRetryable(ctx context.Context, jobType string, oldest, newest time.Time, limit int) ([]domain.WorkItem, error)
	MarkRequeued(ctx context.Context, id uuid.UUID, now time.Time) error
}

// ScheduleRequeuer — перевод расписания обратно в queued перед
// повторной постановкой. Реализуется repo.ScheduleRepo.
type ScheduleRequeuer interface {
	MarkQueued(ctx context.Context, id uuid.UUID, now time.Time, rearm time.Duration) (bool, error)
}

// RetrySweeper перевзводит зависшие элементы снапшотов и импортов.
//
// Второй периодический драйвер рядом с основным sweep'ом. Берёт
// блокировку на уровне семейства задач, чтобы не столкнуться
// с идущим воркером того же семейства. Перед постановкой расписание
// переводится в queued — воркер принимает запуск только из этого
// состояния, постановка без перехода была бы отброшена как дубль.
// Каждый элемент перевзводится не чаще раза за проход: MarkRequeued
// сдвигает updated_at, и минимальный возраст снова начинает тикать.
type RetrySweeper struct {
	store     WorkItemStore
	schedules ScheduleRequeuer
	router    Dispatcher
	guard     *lock.Guard
	lookback  time.Duration
	minAge    time.Duration
	batch     int
	logger    *slog.Logger
}

// RetryConfig — конфигурация RetrySweeper.
type RetryConfig struct {
	Store     WorkItemStore
	Schedules ScheduleRequeuer
	Router    Dispatcher
	Guard     *lock.Guard
	Lookback  time.Duration // окно давности (default: 24h)
	MinAge    time.Duration // минимальный возраст элемента (default: 10m)
	Batch     int           // элементов за проход на тип (default: 50)
	Logger    *slog.Logger
}

// NewRetrySweeper создаёт RetrySweeper.
func NewRetrySweeper(cfg RetryConfig) *RetrySweeper {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = DefaultRetryLookback
	}
	minAge := cfg.MinAge
	if minAge <= 0 {
		minAge = DefaultRetryMinAge
	}
	batch := cfg.Batch
	if batch <= 0 {
		batch = DefaultRetryBatch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RetrySweeper{
		store:     cfg.Store,
		schedules: cfg.Schedules,
		router:    cfg.Router,
		guard:     cfg.Guard,
		lookback:  lookback,
		minAge:    minAge,
		batch:     batch,
		logger:    logger,
	}
}

// Run выполняет один проход по всем retry-семействам.
// Возвращает количество перевзведённых элементов.
func (r *RetrySweeper) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	var total int
	for _, jobType := range retryJobTypes {
		kind := domain.KindFor(jobType)

		ran, err := r.guard.WithLock(ctx, kind, func(ctx context.Context) error {
			n, err := r.sweepType(ctx, jobType, now)
			total += n
			return err
		})
		if err != nil {
			r.logger.Error("retry sweep failed", "job_type", jobType, "error", err)
			continue
		}
		if !ran {
			// Семейство сейчас работает — перевзвод подождёт.
			r.logger.Debug("kind busy, retry postponed", "kind", kind)
		}
	}

	if total > 0 {
		r.logger.Info("retry sweep completed", "requeued", total)
	}

	return total, nil
}

// sweepType перевзводит элементы одного типа задачи.
func (r *RetrySweeper) sweepType(ctx context.Context, jobType string, now time.Time) (int, error) {
	oldest := now.Add(-r.lookback)
	newest := now.Add(-r.minAge)

	items, err := r.store.ListRetryable(ctx, jobType, oldest, newest, r.batch)
	if err != nil {
		return 0, fmt.Errorf("list retryable items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	// Несколько элементов одного расписания — одна постановка:
	// обработчик всё равно подхватывает все открытые элементы.
	enqueued := make(map[uuid.UUID]bool)

	var requeued int
	for i := range items {
		item := &items[i]

		ok, decided := enqueued[item.ScheduleID]
		if !decided {
			ok = r.requeueSchedule(ctx, item, now)
			enqueued[item.ScheduleID] = ok
		}
		if !ok {
			continue
		}

		if err := r.store.MarkRequeued(ctx, item.ID, now); err != nil {
			r.logger.Error("failed to mark work item requeued",
				"work_item_id", item.ID,
				"error", err,
			)
			continue
		}

		telemetry.RetryRequeued.WithLabelValues(item.JobType).Inc()
		requeued++
	}

	return requeued, nil
}

// requeueSchedule переводит расписание элемента в queued и ставит
// задачу в очередь. Возвращает true, если постановка состоялась.
func (r *RetrySweeper) requeueSchedule(ctx context.Context, item *domain.WorkItem, now time.Time) bool {
	// Окно перевзвода — минимальный возраст элемента: расписание,
	// запускавшееся позже now-minAge, может ещё дорабатывать свои
	// элементы. Выключенные расписания не перевзводятся вовсе.
	ok, err := r.schedules.MarkQueued(ctx, item.ScheduleID, now, r.minAge)
	if err != nil {
		r.logger.Error("failed to requeue schedule",
			"schedule_id", item.ScheduleID,
			"job_type", item.JobType,
			"error", err,
		)
		return false
	}
	if !ok {
		r.logger.Debug("schedule ran recently or disabled, retry postponed",
			"schedule_id", item.ScheduleID,
		)
		return false
	}

	enqueued, err := r.router.Dispatch(ctx, item.JobType, item.ScheduleID)
	if err != nil {
		// Строка остаётся queued; после истечения окна расписание
		// перевзведётся снова — как и в основном sweep'е.
		r.logger.Error("failed to re-enqueue work item",
			"work_item_id", item.ID,
			"job_type", item.JobType,
			"error", err,
		)
		return false
	}
	if !enqueued {
		r.logger.Warn("no handler for work item job type",
			"work_item_id", item.ID,
			"job_type", item.JobType,
		)
		return false
	}

	return true
}
