package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// WorkItemRepo — репозиторий единиц работы снапшотов и импортов.
type WorkItemRepo struct {
	pool *pgxpool.Pool
}

// NewWorkItemRepo создаёт новый WorkItemRepo.
func NewWorkItemRepo(pool *pgxpool.Pool) *WorkItemRepo {
	return &WorkItemRepo{pool: pool}
}

const workItemColumns = `id, job_type, schedule_id, shop_id, status, attempts,
	       last_error, enqueued_at, created_at, updated_at`

// Create создаёт новый элемент работы.
func (r *WorkItemRepo) Create(ctx context.Context, item *domain.WorkItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO work_items (id, job_type, schedule_id, shop_id, status, attempts,
		                        last_error, enqueued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		item.ID,
		item.JobType,
		item.ScheduleID,
		item.ShopID,
		string(item.Status),
		item.Attempts,
		nullString(item.LastError),
		item.EnqueuedAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

// ListOpen возвращает необработанные элементы задачи по магазину.
// Обработчик перечитывает их при каждом запуске и закрывает по мере
// обработки — так повторный запуск задачи подхватывает хвосты.
func (r *WorkItemRepo) ListOpen(ctx context.Context, jobType string, shopID uuid.UUID, limit int) ([]domain.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE job_type = $1
		  AND shop_id = $2
		  AND status IN ('pending', 'failed')
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, jobType, shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("list open work items: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// ListRetryable возвращает элементы для Retry Sweep:
// pending/failed, созданные не раньше oldest (окно lookback)
// и не трогавшиеся после newest (минимальный возраст — защита
// от гонки с ещё идущей попыткой).
func (r *WorkItemRepo) ListRetryable(ctx context.Context, jobType string, oldest, newest time.Time, limit int) ([]domain.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE job_type = $1
		  AND status IN ('pending', 'failed')
		  AND created_at >= $2
		  AND updated_at <= $3
		ORDER BY updated_at ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, jobType, oldest, newest, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable work items: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// MarkRequeued фиксирует перевзвод элемента Retry Sweep'ом.
// Сдвигает updated_at, чтобы элемент снова состарился до
// следующего перевзвода.
func (r *WorkItemRepo) MarkRequeued(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE work_items
		SET attempts = attempts + 1, enqueued_at = $2, updated_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark requeued: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted закрывает элемент.
func (r *WorkItemRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, domain.WorkItemStatusCompleted, "")
}

// MarkFailed помечает элемент проваленным с текстом ошибки.
func (r *WorkItemRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.setStatus(ctx, id, domain.WorkItemStatusFailed, lastError)
}

func (r *WorkItemRepo) setStatus(ctx context.Context, id uuid.UUID, status domain.WorkItemStatus, lastError string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE work_items
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), nullString(lastError))
	if err != nil {
		return fmt.Errorf("set work item status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectWorkItems(rows pgx.Rows) ([]domain.WorkItem, error) {
	var items []domain.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var w domain.WorkItem
	var status string
	var lastError *string

	err := row.Scan(
		&w.ID,
		&w.JobType,
		&w.ScheduleID,
		&w.ShopID,
		&status,
		&w.Attempts,
		&lastError,
		&w.EnqueuedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan work item: %w", err)
	}

	w.Status = domain.WorkItemStatus(status)
	if lastError != nil {
		w.LastError = *lastError
	}

	return &w, nil
}
