package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/tag-a-log/internal/config"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/handlers"
	"github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/queue"
	"github.com/benvon/tag-a-log/internal/services/account"
	"github.com/benvon/tag-a-log/internal/services/identity"
	"github.com/benvon/tag-a-log/internal/telemetry"
	"github.com/benvon/tag-a-log/internal/workers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	once := flag.Bool("once", false, "Run a single purge sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(telemetry.WorkerService, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.String("version", handlers.Version),
		zap.Bool("debug_mode", debugMode),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Duration("purge_interval", cfg.PurgeInterval),
		zap.Bool("queue_enabled", cfg.RabbitMQURL != ""),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, _ := telemetry.Setup(ctx, cfg.OTELEnabled, telemetry.WorkerService, handlers.Version, cfg.OTELEndpoint, zapLogger)
	defer shutdownTracing()

	store, err := database.Open(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_store", zap.Error(err))
		}
	}()

	accountRepo := database.NewAccountRepository(store)
	identityRepo := database.NewIdentityRepository(store)
	// only DeleteIdentity is used here, so no token issuer or revoker
	identityService := identity.NewService(identityRepo, accountRepo, nil, nil, nil, zapLogger)
	eraser := account.NewEraser(accountRepo, identityService, zapLogger)

	var dispatcher workers.Dispatcher = workers.NewInlineDispatcher(eraser)
	if cfg.RabbitMQURL != "" {
		jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		// a job not consumed before the next sweep expires and is re-enqueued by it
		dispatcher = workers.NewQueueDispatcher(jobQueue, cfg.PurgeInterval)

		if !*once {
			processor := workers.NewPurgeJobProcessor(accountRepo, eraser, zapLogger)
			if err := consume(ctx, jobQueue, processor, cfg.RabbitMQPrefetch, zapLogger); err != nil {
				zapLogger.Fatal("failed_to_start_consuming_messages", zap.Error(err))
			}

			deadLetters := queue.NewDeadLetterCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
			go func() {
				if err := deadLetters.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zapLogger.Error("dead_letter_collector_stopped_with_error", zap.Error(err))
				}
			}()
			zapLogger.Info("started_dead_letter_collector",
				zap.Duration("interval", cfg.DLQGCInterval),
				zap.Duration("retention", cfg.DLQRetention),
			)
		}
	}

	sweeper := workers.NewSweeper(accountRepo, dispatcher, zapLogger)
	if *once {
		if _, err := sweeper.RunOnce(ctx); err != nil {
			zapLogger.Fatal("purge_sweep_failed", zap.Error(err))
		}
		return
	}

	if cfg.WorkerMetricsPort != "" {
		metricsSrv := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	scheduler := workers.NewScheduler(sweeper, cfg.PurgeInterval, zapLogger)
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("purge_scheduler_stopped_with_error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("worker_shutting_down")
	cancel()
	zapLogger.Info("worker_stopped")
}

// consume processes purge jobs until ctx is cancelled
func consume(ctx context.Context, jobQueue queue.JobQueue, processor *workers.PurgeJobProcessor, prefetch int, logger *zap.Logger) error {
	msgChan, errChan, err := jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return err
	}
	logger.Info("worker_consuming_jobs", zap.Int("prefetch", prefetch))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					logger.Info("message_channel_closed")
					return
				}
				if err := processor.ProcessJob(ctx, msg); err != nil {
					logger.Error("failed_to_process_job",
						zap.String("job_id", msg.Job().ID.String()),
						zap.String("job_type", string(msg.Job().Type)),
						zap.Error(err),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				logger.Error("queue_error", zap.Error(err))
			}
		}
	}()
	return nil
}
