// SellerDesk Worker — выполняет задачи расписаний.
//
// Worker:
//   - Получает постановки из RabbitMQ (очередь jobs.dispatch)
//   - Выполняет обработчик по типу задачи под блокировкой семейства
//   - Записывает итог запуска в run-state расписания
//   - Отправляет операторские уведомления с идемпотентным леджером
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sellerdesk/sellerdesk/internal/config"
	"github.com/sellerdesk/sellerdesk/internal/lock"
	"github.com/sellerdesk/sellerdesk/internal/mq"
	"github.com/sellerdesk/sellerdesk/internal/notify"
	"github.com/sellerdesk/sellerdesk/internal/repo"
	"github.com/sellerdesk/sellerdesk/internal/storefront"
	"github.com/sellerdesk/sellerdesk/internal/telemetry"
	"github.com/sellerdesk/sellerdesk/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting sellerdesk-worker")

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
	deliveryRepo := repo.NewDeliveryRepo(pool)

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

	publisher := mq.NewPublisher(mqConn, logger)

	// Redis: провайдер блокировок Overlap Guard
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	guard := lock.NewGuard(lock.NewRedisProvider(rdb), cfg.LockTTL, logger)

	// Уведомления: леджер в Postgres, доставка через очередь
	notifier := notify.NewDispatcher(deliveryRepo, notify.NewMQSender(publisher), logger)

	// Обработчики каталога
	client := storefront.NewHTTPClient(cfg.StorefrontURL)
	registry := worker.DefaultRegistry(client, workItemRepo, notifier)

	w := worker.New(worker.Config{
		Schedules: scheduleRepo,
		Registry:  registry,
		Guard:     guard,
		Conn:      mqConn,
		Prefetch:  cfg.WorkerPrefetch,
		Logger:    logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.WorkerPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("sellerdesk-worker stopped")
}
