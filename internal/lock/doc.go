// Package lock реализует именованную блокировку с TTL и Overlap Guard.
//
// Структура:
//   - provider.go — интерфейс Provider (try-acquire / release)
//   - redis.go    — Provider поверх Redis (SET NX + Lua release)
//   - memory.go   — Provider в памяти для тестов
//   - guard.go    — Guard.WithLock: работа под блокировкой семейства задач
//
// Использование:
//
//	guard := lock.NewGuard(lock.NewRedisProvider(rdb), time.Hour, logger)
//
//	ran, err := guard.WithLock(ctx, "orders", func(ctx context.Context) error {
//	    return doWork(ctx)
//	})
//	if !ran {
//	    // блокировка занята — тихо выходим
//	}
package lock
