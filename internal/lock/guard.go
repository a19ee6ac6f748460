package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// lockPrefix — общий префикс имён блокировок в хранилище.
const lockPrefix = "sellerdesk:lock:"

// DefaultTTL страхует от упавшего держателя: дольше этого
// блокировка не живёт даже без Release.
const DefaultTTL = time.Hour

// Guard — Overlap Guard: не более одного экземпляра семейства
// задач одновременно.
//
// Ключ — kind (семейство), не id расписания: два расписания
// одного семейства всё равно сериализуются. Захват не ждёт —
// при занятой блокировке работа просто не выполняется.
// Блокировка advisory: она ограждает только пути через этот
// движок, чужой код она не остановит.
type Guard struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewGuard создаёт Guard. При ttl <= 0 используется DefaultTTL.
func NewGuard(provider Provider, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{provider: provider, ttl: ttl, logger: logger}
}

// WithLock выполняет fn под блокировкой семейства kind.
//
// Возвращает ran=false, если блокировка занята — это ожидаемая
// ситуация, не ошибка. Release выполняется на любом пути выхода,
// включая панику fn (паника пробрасывается дальше после release).
func (g *Guard) WithLock(ctx context.Context, kind string, fn func(ctx context.Context) error) (bool, error) {
	name := lockPrefix + kind

	token, err := g.provider.TryAcquire(ctx, name, g.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", kind, err)
	}
	if token == nil {
		g.logger.Debug("lock held elsewhere, skipping", "kind", kind)
		return false, nil
	}

	defer func() {
		// Release должен пройти и при отменённом ctx.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := g.provider.Release(releaseCtx, token); err != nil {
			g.logger.Warn("failed to release lock", "kind", kind, "error", err)
		}
	}()

	return true, fn(ctx)
}
