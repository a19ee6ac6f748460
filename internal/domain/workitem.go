package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkItemStatus — статус единицы работы снапшота/импорта.
type WorkItemStatus string

const (
	// WorkItemStatusPending — элемент создан, но ещё не обработан.
	WorkItemStatusPending WorkItemStatus = "pending"

	// WorkItemStatusFailed — последняя попытка обработки провалилась.
	WorkItemStatusFailed WorkItemStatus = "failed"

	// WorkItemStatusCompleted — элемент успешно обработан.
	WorkItemStatusCompleted WorkItemStatus = "completed"
)

// WorkItem — единица работы задач снапшота и импорта.
//
// Обработчики inventory.snapshot и customers.import создают элементы
// по одному на магазин и закрывают их по мере обработки. Retry Sweep
// находит зависшие pending/failed элементы и перевзводит задачу,
// которая их породила.
type WorkItem struct {
	// ID — уникальный идентификатор элемента.
	ID uuid.UUID `json:"id"`

	// JobType — тип задачи, породившей элемент.
	JobType string `json:"job_type"`

	// ScheduleID — расписание, в рамках которого создан элемент.
	ScheduleID uuid.UUID `json:"schedule_id"`

	// ShopID — магазин, к которому относится элемент.
	ShopID uuid.UUID `json:"shop_id"`

	// Status — текущий статус обработки.
	Status WorkItemStatus `json:"status"`

	// Attempts — количество попыток обработки.
	Attempts int `json:"attempts"`

	// LastError — текст последней ошибки обработки.
	LastError string `json:"last_error,omitempty"`

	// EnqueuedAt — время последнего перевзвода Retry Sweep'ом.
	EnqueuedAt *time.Time `json:"enqueued_at,omitempty"`

	// CreatedAt — время создания элемента.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения. Минимальный возраст
	// Retry Sweep считается от этого поля, чтобы не гоняться
	// с ещё идущей попыткой.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen возвращает true, пока элемент не обработан до конца.
func (w *WorkItem) IsOpen() bool {
	return w.Status != WorkItemStatusCompleted
}
