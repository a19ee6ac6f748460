package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// uniqueViolation — код ошибки Postgres для конфликта уникальности.
const uniqueViolation = "23505"

// DeliveryRepo — леджер идемпотентности доставки уведомлений.
//
// Таблица delivery_records несёт UNIQUE (notification_id, channel).
// Ограничение — механизм корректности; HasDelivered лишь быстрый
// путь, и вставка обязана безопасно переживать дубликаты.
type DeliveryRepo struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepo создаёт новый DeliveryRepo.
func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

// HasDelivered проверяет, доставлялось ли уведомление по каналу.
func (r *DeliveryRepo) HasDelivered(ctx context.Context, channel domain.Channel, notificationID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM delivery_records
			WHERE notification_id = $1 AND channel = $2
		)
	`, notificationID, string(channel)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has delivered: %w", err)
	}
	return exists, nil
}

// Record фиксирует успешную доставку.
// Конфликт уникальности возвращается как ErrAlreadyExists —
// вызывающий трактует его как «уже доставлено», не как сбой.
func (r *DeliveryRepo) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO delivery_records (id, notification_id, event_id, channel, payload, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		rec.ID,
		rec.NotificationID,
		rec.EventID,
		string(rec.Channel),
		payloadJSON,
		rec.DeliveredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}
