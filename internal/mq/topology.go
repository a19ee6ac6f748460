package mq

import "fmt"

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs          Exchange = "sellerdesk.jobs"
	ExchangeNotifications Exchange = "sellerdesk.notifications"
	ExchangeDLQ           Exchange = "sellerdesk.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsDispatch          Queue = "jobs.dispatch"
	QueueNotificationsOutbound Queue = "notifications.outbound"
	QueueDLQJobs               Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyDispatch RoutingKey = "dispatch"
	RoutingKeyOutbound RoutingKey = "outbound"
	RoutingKeyDLQJobs  RoutingKey = "jobs"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна — безопасно вызывать из каждого сервиса при старте.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	exchanges := []Exchange{ExchangeJobs, ExchangeNotifications, ExchangeDLQ}
	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	// jobs.dispatch уходит в DLQ после исчерпания повторов;
	// уведомления — нет: их идемпотентность обеспечивает леджер.
	dlqArgs := map[string]any{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args map[string]any
	}{
		{QueueJobsDispatch, dlqArgs},
		{QueueNotificationsOutbound, nil},
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsDispatch, RoutingKeyDispatch, ExchangeJobs},
		{QueueNotificationsOutbound, RoutingKeyOutbound, ExchangeNotifications},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
