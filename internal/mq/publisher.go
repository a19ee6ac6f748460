package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobDispatch          MessageType = "job.dispatch"
	MessageTypeNotificationOutbound MessageType = "notification.outbound"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobDispatchPayload — payload постановки задачи.
//
// Несёт только id расписания, не всё определение: обработчик
// перечитывает options в момент выполнения, чтобы не работать
// с устаревшей копией.
type JobDispatchPayload struct {
	JobType    string    `json:"job_type"`
	ScheduleID uuid.UUID `json:"schedule_id"`
}

// NotificationOutboundPayload — payload исходящего уведомления.
type NotificationOutboundPayload struct {
	NotificationID uuid.UUID      `json:"notification_id"`
	EventID        uuid.UUID      `json:"event_id"`
	Channel        string         `json:"channel"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = ch.PublishWithContext(
		ctx,
		string(exchange),
		string(routingKey),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	return nil
}

// PublishJobDispatch публикует постановку задачи в очередь.
// Потребитель: Worker. Fire-and-forget со стороны sweep'а.
func (p *Publisher) PublishJobDispatch(ctx context.Context, jobType string, scheduleID uuid.UUID) error {
	payload := JobDispatchPayload{JobType: jobType, ScheduleID: scheduleID}
	return p.Publish(ctx, ExchangeJobs, RoutingKeyDispatch, MessageTypeJobDispatch, payload)
}

// PublishNotification публикует исходящее уведомление.
// Потребитель: внешний шлюз доставки.
func (p *Publisher) PublishNotification(ctx context.Context, payload NotificationOutboundPayload) error {
	return p.Publish(ctx, ExchangeNotifications, RoutingKeyOutbound, MessageTypeNotificationOutbound, payload)
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после json.Unmarshal конверта — map; прогоняем через JSON ещё раз.
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
