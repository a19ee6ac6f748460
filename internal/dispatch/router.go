package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/mq"
)

// EnqueueFunc — постановка задачи в очередь.
// Передаётся только id расписания: обработчик перечитывает
// options при выполнении.
type EnqueueFunc func(ctx context.Context, scheduleID uuid.UUID) error

// Router — реестр типов задач, собираемый при старте.
//
// Новый тип задачи — регистрация, не ветка в коде. Неизвестный
// тип не ошибка всего sweep'а: Dispatch возвращает false,
// а вызывающий помечает расписание skipped и идёт дальше.
type Router struct {
	mu     sync.RWMutex
	routes map[string]EnqueueFunc
	logger *slog.Logger
}

// NewRouter создаёт пустой Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		routes: make(map[string]EnqueueFunc),
		logger: logger,
	}
}

// NewMQRouter создаёт Router со всеми типами каталога,
// публикующими в очередь задач.
func NewMQRouter(pub *mq.Publisher, logger *slog.Logger) *Router {
	r := NewRouter(logger)
	for _, info := range domain.JobTypes() {
		jobType := info.Type
		r.Register(jobType, func(ctx context.Context, scheduleID uuid.UUID) error {
			return pub.PublishJobDispatch(ctx, jobType, scheduleID)
		})
	}
	return r
}

// Register регистрирует тип задачи.
// Повторная регистрация перезаписывает предыдущую.
func (r *Router) Register(jobType string, fn EnqueueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[jobType] = fn
}

// Has проверяет, зарегистрирован ли тип.
func (r *Router) Has(jobType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[jobType]
	return ok
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.routes))
	for t := range r.routes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch ставит задачу расписания в очередь.
//
// Возвращает (false, nil) для незарегистрированного типа —
// вызывающий записывает skipped. Ошибка означает сбой транспорта;
// расписание остаётся queued до истечения re-arm интервала.
func (r *Router) Dispatch(ctx context.Context, jobType string, scheduleID uuid.UUID) (bool, error) {
	r.mu.RLock()
	fn, ok := r.routes[jobType]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("no handler registered", "job_type", jobType, "schedule_id", scheduleID)
		return false, nil
	}

	if err := fn(ctx, scheduleID); err != nil {
		return false, err
	}
	return true, nil
}
