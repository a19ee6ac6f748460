package config

import (
	"os"
	"strconv"
	"time"
)

// Config — конфигурация сервисов из переменных окружения.
type Config struct {
	// DBURL — DSN Postgres.
	DBURL string

	// AMQPURL — URL RabbitMQ.
	AMQPURL string

	// RedisURL — URL Redis для провайдера блокировок.
	RedisURL string

	// SchedPort / WorkerPort — порты healthz+metrics.
	SchedPort  string
	WorkerPort string

	// TickInterval — период тика планировщика.
	TickInterval time.Duration

	// RearmInterval — минимальный интервал перевзвода расписания.
	// Инвариант конфигурации: по умолчанию равен TickInterval —
	// меняя период тика, порог меняется вместе с ним.
	RearmInterval time.Duration

	// SchedBatch — расписаний за один проход sweep'а.
	SchedBatch int

	// LockTTL — TTL блокировок Overlap Guard.
	// Страховка от упавшего держателя.
	LockTTL time.Duration

	// RetryInterval — период Retry Sweep.
	RetryInterval time.Duration

	// RetryLookback — окно давности перевзвода.
	RetryLookback time.Duration

	// RetryMinAge — минимальный возраст элемента до перевзвода
	// (защита от гонки с идущей попыткой).
	RetryMinAge time.Duration

	// RetryBatch — элементов за проход на тип задачи.
	RetryBatch int

	// WorkerPrefetch — неподтверждённых сообщений в полёте у воркера.
	WorkerPrefetch int

	// StorefrontURL — базовый URL API платформы витрин.
	StorefrontURL string
}

// Load читает конфигурацию из окружения с разумными умолчаниями.
func Load() Config {
	tick := envDuration("SCHED_TICK_INTERVAL", time.Minute)

	rearm := envDuration("SCHED_REARM_INTERVAL", 0)
	if rearm <= 0 {
		rearm = tick
	}

	return Config{
		DBURL:          os.Getenv("DB_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		RedisURL:       envString("REDIS_URL", "redis://localhost:6379"),
		SchedPort:      envString("SCHED_PORT", "8081"),
		WorkerPort:     envString("WORKER_PORT", "8082"),
		TickInterval:   tick,
		RearmInterval:  rearm,
		SchedBatch:     envInt("SCHED_BATCH_SIZE", 100),
		LockTTL:        envDuration("LOCK_TTL", time.Hour),
		RetryInterval:  envDuration("RETRY_INTERVAL", 5*time.Minute),
		RetryLookback:  envDuration("RETRY_LOOKBACK", 24*time.Hour),
		RetryMinAge:    envDuration("RETRY_MIN_AGE", 10*time.Minute),
		RetryBatch:     envInt("RETRY_BATCH_SIZE", 50),
		WorkerPrefetch: envInt("WORKER_PREFETCH", 5),
		StorefrontURL:  envString("STOREFRONT_API_URL", "http://localhost:9000"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
