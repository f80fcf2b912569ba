// cmd/intake-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"uw-workbench/internal/api"
	"uw-workbench/internal/carrier"
	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/database"
	"uw-workbench/internal/common/logger"
	"uw-workbench/internal/common/observability"
	"uw-workbench/internal/notify"
	"uw-workbench/internal/pipeline"
	"uw-workbench/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("intake-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Carrier Client ---
	carrierClient := carrier.NewClient(cfg.Carrier, log)
	if err := carrierClient.Ping(ctx); err != nil {
		// Carrier downtime is survivable; the pipeline simulates when
		// configured to.
		zapLog.Warn("carrier unreachable at startup", zap.Error(err))
	} else {
		zapLog.Info("Carrier reachable")
	}

	// --- Init Alerting ---
	alerter, err := notify.NewEmailAlerter(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("failed to create email alerter", zap.Error(err))
	}

	// --- Wire Pipeline ---
	progressStore := store.NewProgressStore(pg, log)
	checksums := store.NewChecksumCache(redis, 24*time.Hour)

	service, err := pipeline.NewService(pipeline.ServiceOptions{
		Config:    cfg.Pipeline,
		Executor:  carrierClient,
		Tracker:   progressStore,
		Checksums: checksums,
		Alerter:   alerter,
		Recorder:  obs,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create pipeline service", zap.Error(err))
	}

	// --- HTTP Server ---
	handler := api.NewHandler(progressStore, service, log)
	server := api.NewServer(cfg.Server, handler, log)

	go func() {
		if err := server.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	if err := server.Shutdown(context.Background()); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zapLog.Info("Intake server stopped gracefully")
}
