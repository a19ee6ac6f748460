package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание периодического запуска фоновой задачи.
//
// Оператор настраивает расписание (cron-выражение + тип задачи + опции),
// а sweep раз в минуту проверяет due-расписания и ставит их в очередь.
// Cron-выражение — единственный источник истины для due-ness;
// Frequency — удобная проекция для UI.
type Schedule struct {
	// ID — уникальный идентификатор расписания.
	// Стабилен при любых правках определения.
	ID uuid.UUID `json:"id"`

	// Name — отображаемое имя. По умолчанию берётся из каталога
	// типов задач (см. catalog.go).
	Name string `json:"name,omitempty"`

	// JobType — строковый тег, выбирающий обработчик в Dispatch Router.
	// Неизменяем после создания.
	// Примеры: "orders.fetch_new", "inventory.snapshot".
	JobType string `json:"job_type"`

	// ShopID — магазин, к которому применяется задача.
	// Nil означает «все подходящие магазины» — обработчик
	// сам резолвит список при выполнении.
	ShopID *uuid.UUID `json:"shop_id,omitempty"`

	// Options — специфичные для типа задачи параметры.
	// Валидируются по схеме типа задачи на стороне CRUD-слоя;
	// движок их не интерпретирует и не передаёт в очередь —
	// обработчик перечитывает их в момент выполнения.
	Options map[string]any `json:"options,omitempty"`

	// Frequency — грубая каденция (hourly, daily, ...).
	Frequency Frequency `json:"frequency"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "*/5 * * * *"   — каждые 5 минут
	//   "0 2 * * *"     — каждый день в 02:00 (в Timezone расписания)
	CronExpr string `json:"cron_expr"`

	// Timezone — часовой пояс, в котором трактуется cron-выражение.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности. Выключенные расписания
	// никогда не оцениваются и не диспатчатся.
	Enabled bool `json:"enabled"`

	// LastRunAt — время последней постановки в очередь.
	// Вместе с re-arm интервалом защищает от повторного
	// диспатча внутри одного тика.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRunEndedAt — время завершения последнего запуска.
	LastRunEndedAt *time.Time `json:"last_run_ended_at,omitempty"`

	// LastRunStatus — статус последнего запуска.
	// Пишется только трекером: sweep ставит queued,
	// воркер — running/completed/failed/skipped.
	LastRunStatus RunStatus `json:"last_run_status,omitempty"`

	// LastRunMessage — человекочитаемый итог или текст ошибки.
	LastRunMessage string `json:"last_run_message,omitempty"`

	// CreatedAt — время создания расписания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCron возвращает true, если у расписания задано cron-выражение.
// Расписание без выражения никогда не due.
func (s *Schedule) HasCron() bool {
	return s.CronExpr != ""
}

// Location возвращает часовой пояс расписания.
// При невалидном поясе — UTC.
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WithinRearm проверяет, попадает ли now в минимальный интервал
// перевзвода после последней постановки в очередь.
func (s *Schedule) WithinRearm(now time.Time, rearm time.Duration) bool {
	if s.LastRunAt == nil {
		return false
	}
	return now.Sub(*s.LastRunAt) < rearm
}

// MarkQueued записывает постановку в очередь.
// Используется in-memory реализациями; SQL-хранилище делает
// то же одним условным UPDATE.
func (s *Schedule) MarkQueued(now time.Time) {
	s.LastRunAt = &now
	s.LastRunEndedAt = nil
	s.LastRunStatus = RunStatusQueued
	s.LastRunMessage = ""
	s.UpdatedAt = now
}

// MarkRunning переводит запуск в running.
func (s *Schedule) MarkRunning(now time.Time) {
	s.LastRunStatus = RunStatusRunning
	s.UpdatedAt = now
}

// MarkOutcome записывает итог запуска (completed/failed/skipped).
func (s *Schedule) MarkOutcome(status RunStatus, message string, now time.Time) {
	s.LastRunStatus = status
	s.LastRunMessage = message
	s.LastRunEndedAt = &now
	s.UpdatedAt = now
}
