package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"planreminder/internal/api"
	"planreminder/internal/cache"
	"planreminder/internal/config"
	"planreminder/internal/delivery"
	"planreminder/internal/jobs"
	"planreminder/internal/metrics"
	"planreminder/internal/model"
	"planreminder/internal/queue"
	"planreminder/internal/remind"
	"planreminder/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadAll()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	metrics.Init()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Metrics.Address,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics server started", zap.String("addr", cfg.Metrics.Address))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	var store storage.ClientStore
	if cfg.Database.PostgresURL != "" {
		db, err := sql.Open("pgx", cfg.Database.PostgresURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		store = storage.NewPostgresStore(db)
		logger.Info("using postgres client store")
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("POSTGRES_URL not set, using in-memory client store")
	}

	webhook := delivery.NewWebhook(cfg.Webhook.URL, logger,
		delivery.WithHealthURL(cfg.Webhook.HealthURL),
		delivery.WithRateLimit(cfg.Webhook.RatePerMinute),
	)

	q := queue.New(webhook, logger, queue.Options{
		DelayBetweenMessages: cfg.Queue.DelayBetweenMessages,
		MaxQueueSize:         cfg.Queue.MaxQueueSize,
		MaxRetries:           cfg.Queue.MaxRetries,
	})

	var sentLog cache.SentLog
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rlog := cache.NewRedisSentLog(rdb, cfg.Redis.TTL)
		sentLog = rlog
		record := func(msg model.QueuedMessage, ok bool) {
			if !ok {
				return
			}
			recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer recCancel()
			sentAt := time.Now()
			if msg.SentAt != nil {
				sentAt = *msg.SentAt
			}
			if err := sentLog.RecordSent(recCtx, msg.ClientID, msg.Kind, msg.ID, sentAt); err != nil {
				logger.Error("failed to record sent reminder", zap.Error(err))
			}
		}
		q.OnResult(model.KindThreeDays, record)
		q.OnResult(model.KindPayment, record)
		logger.Info("redis sent-log enabled", zap.String("addr", cfg.Redis.Address))
	}

	runner := jobs.NewTimerRunner(logger)
	defer runner.Stop()

	orch := remind.NewOrchestrator(store, q, runner, nil, logger)
	if err := orch.SetupReminders(ctx); err != nil {
		logger.Error("initial reminder setup failed", zap.Error(err))
	}

	handler := api.NewHandler(orch, q, webhook, sentLog, logger)
	apiServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.Router(handler),
	}
	go func() {
		logger.Info("api server started", zap.String("addr", cfg.Server.Address))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down services...")

	q.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
