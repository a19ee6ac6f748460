package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sellerdesk/sellerdesk/internal/config"
	"github.com/sellerdesk/sellerdesk/internal/dispatch"
	"github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/mq"
	"github.com/sellerdesk/sellerdesk/internal/repo"
)

// Env — окружение команд CLI.
//
// CLI работает напрямую с инфраструктурой (Postgres, RabbitMQ,
// Redis), а не через API-сервис. Соединения открываются лениво:
// команда каталога не требует БД, а listing расписаний — очереди.
type Env struct {
	cfg    config.Config
	out    *Output
	logger *slog.Logger

	pool *pgxpool.Pool
	conn *mq.Connection
	rdb  *redis.Client
}

// NewEnv создаёт окружение команд.
func NewEnv(cfg config.Config, out *Output, logger *slog.Logger) *Env {
	return &Env{cfg: cfg, out: out, logger: logger}
}

// Close закрывает открытые соединения.
func (e *Env) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
	if e.rdb != nil {
		e.rdb.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// db возвращает пул Postgres, открывая его при первом обращении.
func (e *Env) db(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool != nil {
		return e.pool, nil
	}
	pool, err := repo.NewPool(ctx, e.cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	e.pool = pool
	return pool, nil
}

// Schedules возвращает репозиторий расписаний.
func (e *Env) Schedules(ctx context.Context) (*repo.ScheduleRepo, error) {
	pool, err := e.db(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewScheduleRepo(pool), nil
}

// WorkItems возвращает репозиторий элементов работы.
func (e *Env) WorkItems(ctx context.Context) (*repo.WorkItemRepo, error) {
	pool, err := e.db(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewWorkItemRepo(pool), nil
}

// Router возвращает Dispatch Router поверх RabbitMQ.
// Топология декларируется на всякий случай: CLI может запуститься
// раньше сервисов.
func (e *Env) Router(ctx context.Context) (*dispatch.Router, error) {
	if e.conn == nil {
		conn, err := mq.NewConnection(e.cfg.AMQPURL, e.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		if err := mq.SetupTopology(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		e.conn = conn
	}
	return dispatch.NewMQRouter(mq.NewPublisher(e.conn, e.logger), e.logger), nil
}

// Guard возвращает Overlap Guard поверх Redis.
func (e *Env) Guard() (*lock.Guard, error) {
	if e.rdb == nil {
		opts, err := redis.ParseURL(e.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		e.rdb = redis.NewClient(opts)
	}
	return lock.NewGuard(lock.NewRedisProvider(e.rdb), e.cfg.LockTTL, e.logger), nil
}
