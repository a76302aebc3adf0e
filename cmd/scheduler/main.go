package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tutiful-scheduler/internal/api"
	"tutiful-scheduler/internal/cache"
	"tutiful-scheduler/internal/common/config"
	"tutiful-scheduler/internal/common/database"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/common/observability"
	"tutiful-scheduler/internal/delivery"
	"tutiful-scheduler/internal/jobs/progression"
	"tutiful-scheduler/internal/scheduler"
	"tutiful-scheduler/internal/store"
	"tutiful-scheduler/internal/store/postgres"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting progression scheduler",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis, optional ---
	var redisClient *redis.Client
	if cfg.Database.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = rc.Ping(pingCtx)
			pingCancel()
		}
		if err != nil {
			zapLog.Warn("redis unavailable, cache and scan lock disabled", zap.Error(err))
		} else {
			redisClient = rc.GetClient()
			defer rc.Close()
		}
	}

	db := pg.GetDB()
	lessons := postgres.NewLessonStore(db, log)
	enrollments := postgres.NewEnrollmentStore(db, log)
	notifications := postgres.NewNotificationStore(db, log)
	unread := cache.NewUnreadCache(redisClient, log)

	sender, err := delivery.New(context.Background(), cfg.Delivery, log)
	if err != nil {
		zapLog.Fatal("delivery init failed", zap.Error(err))
	}

	scanner := progression.NewScanner(lessons, enrollments)
	emitter := progression.NewEmitter(lessons, notifications, sender, log)
	service := progression.NewService(
		lessons, scanner, emitter, store.SystemClock{},
		cfg.Scheduler.LessonTimeout, obs, log)

	lock := scheduler.NewScanLock(redisClient, cfg.Scheduler.LockTTL, log)
	trigger := scheduler.NewTrigger(service, cfg.Scheduler.ScanInterval, lock, log)

	handlers := api.NewHandlers(lessons, enrollments, notifications, unread, trigger, db, log)
	server := api.NewServer(cfg.API, handlers, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		go trigger.Start(ctx)
	} else {
		zapLog.Warn("scheduler disabled, scans run only through the admin endpoint")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP shutdown failed", zap.Error(err))
	}

	// Let an in-flight scan finish before the process exits.
	trigger.Wait()
	zapLog.Info("Scheduler stopped")
}
