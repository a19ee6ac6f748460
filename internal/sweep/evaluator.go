package sweep

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sellerdesk/sellerdesk/internal/domain"
)

// cronParser — парсер пятипольных cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Evaluator решает, due ли расписание в данный момент.
//
// Момент всегда приходит в UTC и проецируется в часовой пояс
// расписания перед сопоставлением: поля cron относительны пояса
// ("02:00 Europe/Prague"). Сопоставление идёт по минуте —
// секунды отбрасываются.
type Evaluator struct {
	rearm  time.Duration
	logger *slog.Logger

	// warned — расписания с невалидным cron, о которых уже писали
	// в лог. Невалидное выражение делает расписание permanently
	// not-due, а не ошибкой sweep'а; шумим один раз за процесс.
	mu     sync.Mutex
	warned map[uuid.UUID]struct{}
}

// NewEvaluator создаёт Evaluator с заданным re-arm интервалом.
func NewEvaluator(rearm time.Duration, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		rearm:  rearm,
		logger: logger,
		warned: make(map[uuid.UUID]struct{}),
	}
}

// Due возвращает true, если расписание пора ставить в очередь.
func (e *Evaluator) Due(s *domain.Schedule, now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if !s.HasCron() {
		return false
	}

	// Single-flight внутри тика: недавно поставленное расписание
	// не due, даже если cron-минута всё ещё совпадает. Работает
	// независимо от распределённой блокировки.
	if s.WithinRearm(now, e.rearm) {
		return false
	}

	expr, err := cronParser.Parse(s.CronExpr)
	if err != nil {
		e.warnOnce(s, err)
		return false
	}

	local := now.In(s.Location()).Truncate(time.Minute)

	// Next строго после аргумента: если текущая минута совпадает
	// с выражением, Next(минута-1s) вернёт ровно её.
	return expr.Next(local.Add(-time.Second)).Equal(local)
}

// warnOnce логирует невалидное cron-выражение один раз на расписание.
func (e *Evaluator) warnOnce(s *domain.Schedule, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.warned[s.ID]; ok {
		return
	}
	e.warned[s.ID] = struct{}{}

	e.logger.Warn("invalid cron expression, schedule will never be due",
		"schedule_id", s.ID,
		"cron_expr", s.CronExpr,
		"error", err,
	)
}

// ValidateCron проверяет синтаксис cron-выражения.
// Используется CRUD-слоем при записи определения.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
