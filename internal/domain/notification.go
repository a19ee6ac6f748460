package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel — канал доставки уведомлений операторам.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelWebhook Channel = "webhook"
)

// DeliveryRecord — запись леджера идемпотентности доставки.
//
// Единственный инвариант леджера: уникальность пары
// (notification_id, channel) — одно уведомление никогда
// не доставляется дважды по одному каналу. Проверка перед
// отправкой — быстрый путь; авторитетна именно вставка:
// конфликт уникальности означает «уже доставлено», не ошибку.
type DeliveryRecord struct {
	// ID — идентификатор записи.
	ID uuid.UUID `json:"id"`

	// NotificationID — идентификатор уведомления.
	// Детерминирован для повторяющихся событий (uuid v5 от ключа
	// события), поэтому повторная генерация того же события
	// упирается в леджер.
	NotificationID uuid.UUID `json:"notification_id"`

	// EventID — событие, породившее уведомление.
	EventID uuid.UUID `json:"event_id"`

	// Channel — канал доставки.
	Channel Channel `json:"channel"`

	// Payload — содержимое уведомления.
	Payload map[string]any `json:"payload,omitempty"`

	// DeliveredAt — время успешной отправки.
	DeliveredAt time.Time `json:"delivered_at"`
}
