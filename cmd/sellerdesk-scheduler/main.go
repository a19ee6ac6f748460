// SellerDesk Scheduler — периодический sweep расписаний.
//
// Scheduler:
//   - Раз в тик отбирает due-расписания по cron-выражениям
//   - Атомарно помечает их queued и ставит в очередь jobs.dispatch
//   - Периодически перевзводит зависшие элементы работы (Retry Sweep)
//
// Реплики планировщика сериализуются блокировкой Overlap Guard:
// тик выполняет одна, остальные пропускают.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sellerdesk/sellerdesk/internal/config"
	"github.com/sellerdesk/sellerdesk/internal/dispatch"
	"github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/mq"
	"github.com/sellerdesk/sellerdesk/internal/repo"
	"github.com/sellerdesk/sellerdesk/internal/sweep"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting sellerdesk-scheduler")

	cfg := config.Load()

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	scheduleRepo := repo.NewScheduleRepo(pool)
	workItemRepo := repo.NewWorkItemRepo(pool)

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	router := dispatch.NewMQRouter(mq.NewPublisher(mqConn, logger), logger)

	// Redis: провайдер блокировок Overlap Guard
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	guard := lock.NewGuard(lock.NewRedisProvider(rdb), cfg.LockTTL, logger)

	sweeper := sweep.New(sweep.Config{
		Store:  scheduleRepo,
		Router: router,
		Rearm:  cfg.RearmInterval,
		Batch:  cfg.SchedBatch,
		Logger: logger,
	})

	retrySweeper := sweep.NewRetrySweeper(sweep.RetryConfig{
		Store:     workItemRepo,
		Schedules: scheduleRepo,
		Router:    router,
		Guard:     guard,
		Lookback:  cfg.RetryLookback,
		MinAge:    cfg.RetryMinAge,
		Batch:     cfg.RetryBatch,
		Logger:    logger,
	})

	// Основной цикл: тик раз в cfg.TickInterval под блокировкой.
	go func() {
		tk := time.NewTicker(cfg.TickInterval)
		defer tk.Stop()

		for {
			select {
			case <-tk.C:
				ran, err := guard.WithLock(ctx, sweep.LockKindSweep, func(ctx context.Context) error {
					_, err := sweeper.Tick(ctx, "")
					return err
				})
				if err != nil {
					logger.Error("sweep tick failed", "error", err)
					continue
				}
				if !ran {
					// Тик делает другая реплика.
					logger.Debug("sweep running elsewhere, tick skipped")
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Retry Sweep: свой, более редкий, ритм.
	go func() {
		tk := time.NewTicker(cfg.RetryInterval)
		defer tk.Stop()

		for {
			select {
			case <-tk.C:
				ran, err := guard.WithLock(ctx, sweep.LockKindRetry, func(ctx context.Context) error {
					_, err := retrySweeper.Run(ctx)
					return err
				})
				if err != nil {
					logger.Error("retry sweep failed", "error", err)
					continue
				}
				if !ran {
					logger.Debug("retry sweep running elsewhere, skipped")
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.SchedPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("sellerdesk-scheduler stopped")
}
