package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/mq"
	"github.com/sellerdesk/sellerdesk/internal/repo"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// defaultPrefetch — сообщений в полёте по умолчанию.
const defaultPrefetch = 5

// ScheduleStore — операции трекера, нужные воркеру.
// Реализуется repo.ScheduleRepo. Queued через этот интерфейс
// недостижим — он принадлежит sweep'у.
type ScheduleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	MarkRunning(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkOutcome(ctx context.Context, id uuid.UUID, status domain.RunStatus, message string) error
}

// Worker выполняет задачи расписаний из очереди jobs.dispatch.
//
// Worker — stateless компонент:
//   - Получает постановки из RabbitMQ
//   - Перечитывает расписание из БД (options актуальны)
//   - Берёт блокировку семейства через Overlap Guard
//   - Выполняет обработчик и записывает итог через трекер
//
// Workers масштабируются горизонтально; от параллельного
// выполнения одного семейства защищает Overlap Guard.
type Worker struct {
	schedules ScheduleStore
	registry  *Registry
	guard     *lock.Guard

	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Schedules ScheduleStore
	Registry  *Registry
	Guard     *lock.Guard
	Conn      *mq.Connection
	Prefetch  int // сообщений в полёте (default: 5)
	Logger    *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		schedules: cfg.Schedules,
		registry:  registry,
		guard:     cfg.Guard,
		conn:      cfg.Conn,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает потребление очереди задач.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"prefetch", w.prefetch,
		"job_types", w.registry.Types(),
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsDispatch),
		Handler:  w.handleJobDispatch,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается текущих задач.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// handleJobDispatch обрабатывает сообщение job.dispatch.
func (w *Worker) handleJobDispatch(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobDispatchPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.dispatch payload", "error", err)
		// Некорректный payload ретраить бессмысленно.
		return nil
	}

	return w.process(ctx, payload.JobType, payload.ScheduleID)
}

// process выполняет одну задачу расписания.
//
// Возвращает ошибку только при сбоях инфраструктуры (сообщение
// уйдёт в nack/requeue); ошибка самой задачи записывается
// в run-state, и для очереди это успех — итог зафиксирован,
// повторять доставку не нужно.
func (w *Worker) process(ctx context.Context, jobType string, scheduleID uuid.UUID) error {
	logger := telemetry.WithJobType(telemetry.WithScheduleID(w.logger, scheduleID.String()), jobType)

	sched, err := w.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Расписание удалили после постановки — задача испаряется.
			logger.Debug("schedule gone, dropping job")
			return nil
		}
		return fmt.Errorf("get schedule: %w", err)
	}

	handler, err := w.registry.Get(jobType)
	if err != nil {
		// Нормально ловится на sweep'е; сюда попадает только
		// рассинхрон реестров между сервисами.
		logger.Warn("no handler registered")
		w.markOutcome(ctx, logger, scheduleID, domain.RunStatusSkipped, "no handler registered")
		return nil
	}

	ran, err := w.guard.WithLock(ctx, handler.Kind(), func(ctx context.Context) error {
		w.run(ctx, logger, handler, sched)
		return nil
	})
	if err != nil {
		return fmt.Errorf("with lock: %w", err)
	}
	if !ran {
		// Семейство уже выполняется — ожидаемая ситуация.
		telemetry.SchedulesSkipped.WithLabelValues("lock_held").Inc()
		logger.Debug("kind lock held, skipping run", "kind", handler.Kind())
		w.markOutcome(ctx, logger, scheduleID, domain.RunStatusSkipped,
			fmt.Sprintf("another %s job is running", handler.Kind()))
	}

	return nil
}

// run выполняет обработчик под уже взятой блокировкой
// и записывает итог.
func (w *Worker) run(ctx context.Context, logger *slog.Logger, handler Handler, sched *domain.Schedule) {
	now := time.Now().UTC()

	if err := w.schedules.MarkRunning(ctx, sched.ID, now); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// Повторная доставка того же сообщения — запуск уже
			// прошёл этот переход.
			logger.Debug("schedule not in queued state, dropping duplicate")
			return
		}
		logger.Error("failed to mark schedule running", "error", err)
		return
	}

	logger.Info("job started", "schedule_name", sched.Name)
	started := time.Now()

	summary, err := w.executeSafe(ctx, handler, sched, logger)

	duration := time.Since(started)
	telemetry.JobDuration.WithLabelValues(handler.Type()).Observe(duration.Seconds())

	if err != nil {
		telemetry.JobRuns.WithLabelValues(handler.Type(), string(domain.RunStatusFailed)).Inc()
		logger.Warn("job failed", "duration", duration, "error", err)
		w.markOutcome(ctx, logger, sched.ID, domain.RunStatusFailed, err.Error())
		return
	}

	telemetry.JobRuns.WithLabelValues(handler.Type(), string(domain.RunStatusCompleted)).Inc()
	logger.Info("job completed", "duration", duration, "summary", summary)
	w.markOutcome(ctx, logger, sched.ID, domain.RunStatusCompleted, summary)
}

// executeSafe выполняет обработчик, превращая панику в ошибку:
// необработанная паника обязана закончиться статусом failed,
// а не вечным running.
func (w *Worker) executeSafe(ctx context.Context, handler Handler, sched *domain.Schedule, logger *slog.Logger) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	job := &Job{Schedule: sched, Logger: logger}
	return handler.Execute(ctx, job)
}

// markOutcome записывает итог запуска. Сбой записи не должен
// молча потеряться — логируем на уровне error.
func (w *Worker) markOutcome(ctx context.Context, logger *slog.Logger, id uuid.UUID, status domain.RunStatus, message string) {
	if err := w.schedules.MarkOutcome(ctx, id, status, message); err != nil {
		logger.Error("failed to record run outcome",
			"status", status,
			"error", err,
		)
	}
}
