// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - job.dispatch           — постановка задачи расписания (payload: тип + id расписания)
//   - notification.outbound  — исходящее уведомление оператору
//
// Exchanges:
//   - sellerdesk.jobs           — постановки задач
//   - sellerdesk.notifications  — уведомления
//   - sellerdesk.dlq            — dead letter queue
package mq
