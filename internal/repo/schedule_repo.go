package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// ScheduleRepo — репозиторий расписаний.
//
// Движок пишет только run-state поля (last_run_*); определение
// расписания (job_type, options, cron_expr) меняется операторским
// CLI и внешним CRUD-слоем. Все run-state мутации — одиночные
// атомарные UPDATE, не блокирующие чтение других строк.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const scheduleColumns = `id, name, job_type, shop_id, options, frequency, cron_expr,
	       timezone, enabled, last_run_at, last_run_ended_at, last_run_status,
	       last_run_message, created_at, updated_at`

// Create вставляет новое расписание. Используется операторским CLI;
// run-state поля новой строки пусты.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	optionsJSON, err := json.Marshal(s.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO schedules (id, name, job_type, shop_id, options, frequency,
		                       cron_expr, timezone, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`,
		s.ID, s.Name, s.JobType, s.ShopID, optionsJSON,
		string(s.Frequency), nullString(s.CronExpr), s.Timezone,
		s.Enabled, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// GetByID возвращает расписание по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает расписания с фильтрацией для операторских команд.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE ($1::text IS NULL OR job_type = $1)
		  AND ($2::boolean IS NULL OR enabled = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.JobType),
		filter.Enabled,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// ListEnabled возвращает включённые расписания для sweep'а.
// Пустой jobType — без фильтра по типу.
func (r *ScheduleRepo) ListEnabled(ctx context.Context, jobType string, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND ($1::text IS NULL OR job_type = $1)
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(jobType), limit)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// MarkQueued атомарно ставит расписание в очередь.
//
// Возвращает false, если с последней постановки не прошёл минимальный
// интервал перевзвода — это защита от двойной постановки внутри одного
// тика, работающая независимо от распределённой блокировки. Условие
// и запись — один UPDATE, гонка двух sweep'ов решается на уровне строки.
func (r *ScheduleRepo) MarkQueued(ctx context.Context, id uuid.UUID, now time.Time, rearm time.Duration) (bool, error) {
	cutoff := now.Add(-rearm)
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET last_run_status = 'queued', last_run_at = $2,
		    last_run_message = NULL, last_run_ended_at = NULL, updated_at = $2
		WHERE id = $1
		  AND enabled = true
		  AND (last_run_at IS NULL OR last_run_at <= $3)
	`, id, now, cutoff)
	if err != nil {
		return false, fmt.Errorf("mark queued: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkRunning переводит запуск queued → running.
// Возвращает ErrInvalidState, если расписание не в queued —
// так отсекаются повторные доставки одного сообщения.
func (r *ScheduleRepo) MarkRunning(ctx context.Context, id uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET last_run_status = 'running', updated_at = $2
		WHERE id = $1 AND last_run_status = 'queued'
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkOutcome записывает итог запуска.
// Принимает только completed/failed/skipped: queued принадлежит
// sweep'у и через этот метод недостижим.
func (r *ScheduleRepo) MarkOutcome(ctx context.Context, id uuid.UUID, status domain.RunStatus, message string) error {
	if !status.IsOutcome() {
		return fmt.Errorf("%w: outcome %q", ErrInvalidState, status)
	}

	now := time.Now().UTC()
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET last_run_status = $2, last_run_message = $3,
		    last_run_ended_at = $4, updated_at = $4
		WHERE id = $1
	`, id, string(status), nullString(message), now)
	if err != nil {
		return fmt.Errorf("mark outcome: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает расписание.
// Выключение останавливает только будущие диспатчи —
// уже поставленная задача доработает до конца.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules SET enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет расписание. Идемпотентен: отсутствие строки — не ошибка.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации расписаний.
type ScheduleFilter struct {
	JobType string
	Enabled *bool
	Limit   int
	Offset  int
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var name, cronExpr, frequency, status, message *string
	var optionsJSON []byte

	err := row.Scan(
		&s.ID,
		&name,
		&s.JobType,
		&s.ShopID,
		&optionsJSON,
		&frequency,
		&cronExpr,
		&s.Timezone,
		&s.Enabled,
		&s.LastRunAt,
		&s.LastRunEndedAt,
		&status,
		&message,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if name != nil {
		s.Name = *name
	}
	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if frequency != nil {
		s.Frequency = domain.Frequency(*frequency)
	}
	if status != nil {
		s.LastRunStatus = domain.ParseRunStatus(*status)
	}
	if message != nil {
		s.LastRunMessage = *message
	}
	if optionsJSON != nil {
		if err := json.Unmarshal(optionsJSON, &s.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}

	return &s, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
