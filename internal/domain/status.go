package domain

// RunStatus — статус последнего запуска расписания.
//
// Жизненный цикл:
//
//	(нет) → QUEUED → RUNNING → COMPLETED
//	              ↘          ↘ FAILED
//	               SKIPPED
//
// После терминального статуса цикл начинается заново
// со следующей постановки в очередь.
type RunStatus string

const (
	// RunStatusNone — расписание ещё ни разу не запускалось.
	RunStatusNone RunStatus = ""

	// RunStatusQueued — задача поставлена в очередь sweep'ом.
	RunStatusQueued RunStatus = "queued"

	// RunStatusRunning — задача выполняется воркером.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted — задача успешно завершена.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed — задача завершилась ошибкой.
	RunStatusFailed RunStatus = "failed"

	// RunStatusSkipped — запуск пропущен (нет обработчика,
	// занята блокировка и т.п.).
	RunStatusSkipped RunStatus = "skipped"
)

// transitions — допустимые переходы между статусами.
// Трекер отклоняет любую запись, которой нет в таблице.
var transitions = map[RunStatus][]RunStatus{
	RunStatusNone:      {RunStatusQueued, RunStatusSkipped},
	RunStatusQueued:    {RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusSkipped},
	RunStatusRunning:   {RunStatusCompleted, RunStatusFailed},
	RunStatusCompleted: {RunStatusQueued, RunStatusSkipped},
	RunStatusFailed:    {RunStatusQueued, RunStatusSkipped},
	RunStatusSkipped:   {RunStatusQueued, RunStatusSkipped},
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true, если статус финальный для текущего цикла.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// IsOutcome возвращает true для статусов, которые имеет право
// записывать воркер. Воркер никогда не ставит queued —
// это принадлежит sweep'у.
func (s RunStatus) IsOutcome() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "queued":
		return RunStatusQueued
	case "running":
		return RunStatusRunning
	case "completed":
		return RunStatusCompleted
	case "failed":
		return RunStatusFailed
	case "skipped":
		return RunStatusSkipped
	default:
		return RunStatusNone
	}
}
