package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// Job — контекст одного запуска задачи.
type Job struct {
	// Schedule — определение расписания, перечитанное из БД
	// в момент выполнения (options актуальны).
	Schedule *domain.Schedule

	// Logger — логгер с атрибутами запуска.
	Logger *slog.Logger
}

// Handler — обработчик одного типа задачи.
type Handler interface {
	// Type — тег типа задачи.
	Type() string

	// Kind — семейство задачи, ключ Overlap Guard.
	Kind() string

	// Execute выполняет задачу и возвращает краткий итог
	// для оператора (lastRunMessage).
	Execute(ctx context.Context, job *Job) (string, error)
}

// Registry — реестр обработчиков задач.
//
// Собирается при старте воркера. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register регистрирует обработчик.
// Повторная регистрация типа перезаписывает предыдущую.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get возвращает обработчик по типу задачи.
func (r *Registry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, jobType)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(jobType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[jobType]
	return ok
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
