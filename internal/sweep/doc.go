// Package sweep реализует проходы планировщика.
//
// Структура:
//   - evaluator.go — due-ness: сопоставление cron-выражения
//     с текущей минутой в поясе расписания + re-arm защита
//   - sweeper.go   — основной проход: due-расписания → queued → очередь
//   - retry.go     — перевзвод зависших элементов снапшотов/импортов
//
// Использование:
//
//	sw := sweep.New(sweep.Config{
//	    Store:  scheduleRepo,
//	    Router: router,
//	    Rearm:  cfg.RearmInterval,
//	    Logger: logger,
//	})
//
//	// Вызывается внешними часами раз в минуту
//	dispatched, err := sw.Tick(ctx, "")
//
// Координация реплик:
//
// Sweeper сам не выбирает лидера. Это делается в main через
// Overlap Guard (kind "scheduler.sweep") — тик выполняет тот,
// кто захватил блокировку, остальные молча пропускают.
package sweep
