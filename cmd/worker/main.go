package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/rentledger/internal/app"
	"github.com/josh-kwaku/rentledger/internal/config"
	"github.com/josh-kwaku/rentledger/internal/logging"
	"github.com/josh-kwaku/rentledger/internal/metrics"
	"github.com/josh-kwaku/rentledger/internal/repository"
	"github.com/josh-kwaku/rentledger/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("rentledger-worker", cfg.LogLevel, cfg.AppEnv)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("invalid billing timezone", "error", err)
		os.Exit(1)
	}

	schedule, err := tasks.LoadSchedule(cfg.ScheduleFile)
	if err != nil {
		slog.Error("failed to load schedule", "error", err)
		os.Exit(1)
	}
	cronLoc := loc
	if schedule.Timezone != "" {
		if cronLoc, err = time.LoadLocation(schedule.Timezone); err != nil {
			slog.Error("invalid schedule timezone", "timezone", schedule.Timezone, "error", err)
			os.Exit(1)
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	db, err := repository.NewPostgresDB(startCtx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := tasks.ConnectRedis(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	metrics.Register(prometheus.DefaultRegisterer)
	svc := app.NewServices(db, cfg, loc)
	processor := tasks.NewProcessor(svc.Billing, svc.Utilities, svc.Idempotency, loc)

	srv := asynq.NewServer(tasks.RedisOpt(rdb), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			tasks.QueueBilling:     6,
			tasks.QueueAllocation:  3,
			tasks.QueueMaintenance: 1,
		},
		BaseContext: func() context.Context {
			return logging.WithLogger(context.Background(), logger)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			slog.Error("task failed",
				"type", task.Type(),
				"payload", string(task.Payload()),
				"retry", retried, "max_retry", maxRetry,
				"error", err,
			)
		}),
	})

	scheduler := asynq.NewScheduler(tasks.RedisOpt(rdb), &asynq.SchedulerOpts{Location: cronLoc})
	n, err := schedule.Register(scheduler)
	if err != nil {
		slog.Error("failed to register schedule", "error", err)
		os.Exit(1)
	}
	slog.Info("schedule registered", "entries", n, "timezone", cronLoc.String())

	if err := srv.Start(tasks.NewServeMux(processor)); err != nil {
		slog.Error("failed to start task server", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		srv.Shutdown()
		os.Exit(1)
	}
	slog.Info("worker started", "concurrency", cfg.WorkerConcurrency, "redis_addr", cfg.RedisAddr)

	// Batch outcome counters are only visible through this listener.
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		slog.Warn("metrics server shutdown", "error", err)
	}
	scheduler.Shutdown()
	srv.Shutdown()
	slog.Info("worker stopped")
}
