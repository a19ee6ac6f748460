package domain

// Frequency — грубая каденция расписания.
//
// Удобная проекция для операторского UI: при создании расписания
// из каденции выводится cron-выражение по умолчанию. Для due-ness
// авторитетен только CronExpr.
type Frequency string

const (
	FrequencyEveryMinute Frequency = "every_minute"
	FrequencyHourly      Frequency = "hourly"
	FrequencyDaily       Frequency = "daily"
	FrequencyWeekly      Frequency = "weekly"

	// FrequencyCustom — оператор задал cron-выражение вручную.
	FrequencyCustom Frequency = "custom"
)

// CronExpr возвращает cron-выражение по умолчанию для каденции.
// Для custom возвращает пустую строку — выражение задаёт оператор.
func (f Frequency) CronExpr() string {
	switch f {
	case FrequencyEveryMinute:
		return "* * * * *"
	case FrequencyHourly:
		return "0 * * * *"
	case FrequencyDaily:
		return "0 2 * * *"
	case FrequencyWeekly:
		return "0 2 * * 1"
	default:
		return ""
	}
}

// Valid проверяет, что каденция из известного набора.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyEveryMinute, FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	default:
		return false
	}
}
