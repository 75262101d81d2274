package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/def-order-backend/internal/config"
	"github.com/ariefcatur/def-order-backend/internal/jobs"
	kafkax "github.com/ariefcatur/def-order-backend/internal/kafka"
	"github.com/ariefcatur/def-order-backend/internal/notify"
	"github.com/ariefcatur/def-order-backend/internal/observability"
	"github.com/ariefcatur/def-order-backend/internal/orders"
	"github.com/ariefcatur/def-order-backend/internal/postgres"
	"github.com/ariefcatur/def-order-backend/internal/push"
	"github.com/ariefcatur/def-order-backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if cfg.FirebaseProjectID == "" {
		logger.Fatal("FIREBASE_PROJECT_ID is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.DataStoreEndpoint, cfg.ServiceCredential)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	sender, err := push.NewFCMSender(ctx, cfg.FirebaseProjectID, cfg.PushProviderCredential)
	if err != nil {
		logger.Fatal("fcm init", zap.Error(err))
	}

	repo := &notify.Repo{DB: db}
	svc := &notify.Service{
		Store:       repo,
		Directory:   repo,
		Sender:      sender,
		Mode:        notify.PushInline,
		Dedup:       &redisx.Dedup{Client: rdb},
		ServiceName: cfg.ServiceName + "-pushworker",
		Logger:      logger.Named("notify"),
	}

	retention := jobs.NewLogRetentionJob(repo,
		time.Duration(cfg.LogRetentionDays)*24*time.Hour, cfg.LogRetentionSchedule, logger)
	if err := retention.Start(); err != nil {
		logger.Fatal("log retention job", zap.Error(err))
	}
	defer retention.Stop()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PushWorkerGroup, orders.TopicNotificationCreated, cfg.PushWorkerWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("push worker started",
			zap.String("group", cfg.PushWorkerGroup),
			zap.String("topic", orders.TopicNotificationCreated),
			zap.Int("workers", cfg.PushWorkerWorkers))
		if err := cons.Start(ctx, svc.HandleNotificationCreated); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
