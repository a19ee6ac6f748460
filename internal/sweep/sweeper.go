package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// DefaultRearmInterval — минимальный интервал перевзвода по умолчанию.
// Связан с тиком раз в минуту: меняется тик — меняется и он
// (см. config).
const DefaultRearmInterval = time.Minute

// LockKindSweep — имя блокировки, сериализующей проход планировщика
// между репликами. Тот же Overlap Guard, что у семейств задач.
const LockKindSweep = "scheduler.sweep"

// DefaultSweepBatch — расписаний за один проход по умолчанию.
const DefaultSweepBatch = 100

// ScheduleStore — операции хранилища расписаний, нужные sweep'у.
// Реализуется repo.ScheduleRepo.
type ScheduleStore interface {
	ListEnabled(ctx context.Context, jobType string, limit int) ([]domain.Schedule, error)
	MarkQueued(ctx context.Context, id uuid.UUID, now time.Time, rearm time.Duration) (bool, error)
	MarkOutcome(ctx context.Context, id uuid.UUID, status domain.RunStatus, message string) error
}

// Dispatcher — постановка задачи в очередь. Реализуется dispatch.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobType string, scheduleID uuid.UUID) (bool, error)
}

// Sweeper — один проход по включённым расписаниям.
//
// Вызывается внешними часами раз в минуту (или вручную через CLI
// с фильтром по типу). Ошибки одного расписания никогда не
// блокируют обработку остальных. Сам проход однопоточный;
// выполнение задач асинхронно за очередью.
type Sweeper struct {
	store  ScheduleStore
	router Dispatcher
	eval   *Evaluator
	rearm  time.Duration
	batch  int
	logger *slog.Logger
}

// Config — конфигурация Sweeper.
type Config struct {
	Store  ScheduleStore
	Router Dispatcher
	Rearm  time.Duration // минимальный интервал перевзвода (default: 1m)
	Batch  int           // расписаний за проход (default: 100)
	Logger *slog.Logger
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	rearm := cfg.Rearm
	if rearm <= 0 {
		rearm = DefaultRearmInterval
	}

	batch := cfg.Batch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:  cfg.Store,
		router: cfg.Router,
		eval:   NewEvaluator(rearm, logger),
		rearm:  rearm,
		batch:  batch,
		logger: logger,
	}
}

// Tick выполняет один проход планировщика.
//
// 1. Загружает включённые расписания (опционально по типу)
// 2. Отбирает due через Evaluator
// 3. Атомарно помечает queued (re-arm защищает от дублей)
// 4. Ставит в очередь через Router
//
// Возвращает количество поставленных задач; 0 — валидный исход.
func (s *Sweeper) Tick(ctx context.Context, jobTypeFilter string) (int, error) {
	now := time.Now().UTC()
	telemetry.SweepTicks.Inc()

	schedules, err := s.store.ListEnabled(ctx, jobTypeFilter, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list enabled schedules: %w", err)
	}

	var dispatched int
	for i := range schedules {
		sched := &schedules[i]

		if !s.eval.Due(sched, now) {
			continue
		}

		if s.processSchedule(ctx, sched, now) {
			dispatched++
		}
	}

	s.logger.Info("sweep completed",
		"evaluated", len(schedules),
		"dispatched", dispatched,
	)

	return dispatched, nil
}

// processSchedule ставит одно due-расписание в очередь.
// Возвращает true, если задача реально отправлена.
func (s *Sweeper) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) bool {
	// Сначала queued, потом очередь: упади процесс между этими
	// шагами, re-arm интервал не даст немедленного повторного
	// диспатча на следующем тике.
	ok, err := s.store.MarkQueued(ctx, sched.ID, now, s.rearm)
	if err != nil {
		// Потеря записи state — не потеря sweep'а: логируем
		// и идём к следующему расписанию.
		s.logger.Error("failed to mark schedule queued",
			"schedule_id", sched.ID,
			"job_type", sched.JobType,
			"error", err,
		)
		return false
	}
	if !ok {
		// Второй вызов тика внутри той же минуты.
		s.logger.Debug("re-arm interval not elapsed, skipping",
			"schedule_id", sched.ID,
		)
		return false
	}

	enqueued, err := s.router.Dispatch(ctx, sched.JobType, sched.ID)
	if err != nil {
		// Строка остаётся queued; расписание снова станет due
		// после истечения re-arm интервала.
		s.logger.Error("failed to enqueue job",
			"schedule_id", sched.ID,
			"job_type", sched.JobType,
			"error", err,
		)
		return false
	}

	if !enqueued {
		telemetry.SchedulesSkipped.WithLabelValues("no_handler").Inc()
		if err := s.store.MarkOutcome(ctx, sched.ID, domain.RunStatusSkipped, "no handler registered"); err != nil {
			s.logger.Error("failed to mark schedule skipped",
				"schedule_id", sched.ID,
				"error", err,
			)
		}
		return false
	}

	telemetry.SchedulesDispatched.WithLabelValues(sched.JobType).Inc()
	s.logger.Info("dispatched schedule",
		"schedule_id", sched.ID,
		"job_type", sched.JobType,
		"schedule_name", sched.Name,
	)

	return true
}
