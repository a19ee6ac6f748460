// Package worker выполняет задачи расписаний.
//
// # Обзор
//
// Worker — stateless компонент SellerDesk, который выполняет задачи,
// поставленные планировщиком в очередь jobs.dispatch. Worker отвечает за:
//
//   - Получение постановок из очереди RabbitMQ
//   - Перечитывание расписания из БД перед выполнением
//   - Захват блокировки семейства (Overlap Guard) на время запуска
//   - Выполнение обработчика по типу задачи
//   - Запись итога запуска в run-state расписания
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди jobs.dispatch; от параллельного
// выполнения одного семейства защищает Overlap Guard.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    Schedules: scheduleRepo,
//	    Registry:  registry,
//	    Guard:     guard,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Handler
//
// Интерфейс для выполнения конкретного типа задачи:
//
//	type Handler interface {
//	    Type() string
//	    Kind() string
//	    Execute(ctx context.Context, job *Job) (string, error)
//	}
//
// Kind — семейство задачи (orders, products, inventory, customers,
// analytics), оно же имя блокировки Overlap Guard.
//
// ## Registry
//
// Реестр обработчиков по типу задачи. DefaultRegistry() создаёт
// реестр со всеми обработчиками каталога.
//
// # Обработка задачи
//
//  1. Получение постановки из очереди
//  2. Загрузка расписания из БД (удалено — дроп без ошибки)
//  3. Захват блокировки семейства (занята — итог skipped)
//  4. Перевод queued → running (не queued — дроп дубликата)
//  5. Выполнение обработчика, паника превращается в ошибку
//  6. Успех → MarkOutcome(completed, summary)
//  7. Ошибка → MarkOutcome(failed, текст ошибки)
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (БД, блокировка недоступна) — nack/requeue,
//     сообщение вернётся
//   - Ошибки задачи (платформа вернула 500, данные не сошлись) —
//     фиксируются статусом failed, доставка подтверждается
//
// Повтор упавших задач делает не очередь, а Retry Sweep планировщика.
package worker
