package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/mq"
	"github.com/sellerdesk/sellerdesk/internal/repo"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

// Notification — уведомление оператору.
type Notification struct {
	// ID — идентификатор уведомления; детерминирован для
	// повторяющихся событий, чтобы дубликаты упирались в леджер.
	ID uuid.UUID

	// EventID — событие, породившее уведомление.
	EventID uuid.UUID

	// Payload — содержимое.
	Payload map[string]any
}

// Ledger — леджер идемпотентности. Реализуется repo.DeliveryRepo.
type Ledger interface {
	HasDelivered(ctx context.Context, channel domain.Channel, notificationID uuid.UUID) (bool, error)
	Record(ctx context.Context, rec *domain.DeliveryRecord) error
}

// Sender — граница канала доставки.
// Возвращает delivered=false, если канал отказался без ошибки
// (например, получатель отписан).
type Sender interface {
	Send(ctx context.Context, channel domain.Channel, notificationID uuid.UUID, payload map[string]any) (bool, error)
}

// Dispatcher отправляет уведомления с гарантией «не дважды
// по одному каналу».
//
// Порядок строгий: сначала проверка леджера (быстрый путь),
// затем отправка, затем запись. Авторитетна запись: конфликт
// уникальности при вставке означает, что параллельная доставка
// успела раньше, и трактуется как успех.
type Dispatcher struct {
	ledger Ledger
	sender Sender
	logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(ledger Ledger, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ledger: ledger, sender: sender, logger: logger}
}

// Deliver отправляет уведомление по одному каналу.
// Возвращает true, если доставка состоялась (в этом вызове
// или ранее — дубликат тоже считается доставленным).
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification, channel domain.Channel) (bool, error) {
	delivered, err := d.ledger.HasDelivered(ctx, channel, n.ID)
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	if delivered {
		telemetry.NotificationsDuplicate.WithLabelValues(string(channel)).Inc()
		d.logger.Debug("notification already delivered, skipping",
			"notification_id", n.ID,
			"channel", channel,
		)
		return true, nil
	}

	sent, err := d.sender.Send(ctx, channel, n.ID, n.Payload)
	if err != nil {
		return false, fmt.Errorf("send via %s: %w", channel, err)
	}
	if !sent {
		return false, nil
	}

	rec := &domain.DeliveryRecord{
		ID:             uuid.New(),
		NotificationID: n.ID,
		EventID:        n.EventID,
		Channel:        channel,
		Payload:        n.Payload,
		DeliveredAt:    time.Now().UTC(),
	}

	if err := d.ledger.Record(ctx, rec); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Кто-то доставил параллельно — ограничение уникальности
			// сделало свою работу.
			telemetry.NotificationsDuplicate.WithLabelValues(string(channel)).Inc()
			return true, nil
		}
		// Доставлено, но не записано: лучше риск дубликата,
		// чем молчаливо потерянная запись.
		return true, fmt.Errorf("record delivery: %w", err)
	}

	telemetry.NotificationsDelivered.WithLabelValues(string(channel)).Inc()
	return true, nil
}

// DeliverAll отправляет уведомление по всем каналам.
// Ошибка одного канала не блокирует остальные.
// Возвращает количество доставленных.
func (d *Dispatcher) DeliverAll(ctx context.Context, n *Notification, channels []domain.Channel) int {
	var delivered int
	for _, ch := range channels {
		ok, err := d.Deliver(ctx, n, ch)
		if err != nil {
			d.logger.Error("notification delivery failed",
				"notification_id", n.ID,
				"channel", ch,
				"error", err,
			)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered
}

// MQSender — Sender, публикующий уведомления в очередь
// notifications.outbound для внешнего шлюза доставки.
type MQSender struct {
	pub *mq.Publisher
}

// NewMQSender создаёт MQSender.
func NewMQSender(pub *mq.Publisher) *MQSender {
	return &MQSender{pub: pub}
}

// Send публикует уведомление в очередь.
func (s *MQSender) Send(ctx context.Context, channel domain.Channel, notificationID uuid.UUID, payload map[string]any) (bool, error) {
	err := s.pub.PublishNotification(ctx, mq.NotificationOutboundPayload{
		NotificationID: notificationID,
		Channel:        string(channel),
		Payload:        payload,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
