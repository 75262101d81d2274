package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/def-order-backend/internal/auth"
	"github.com/ariefcatur/def-order-backend/internal/config"
	"github.com/ariefcatur/def-order-backend/internal/httpx"
	"github.com/ariefcatur/def-order-backend/internal/inventory"
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

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.DataStoreEndpoint, cfg.ServiceCredential)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	producers := map[string]*kafkax.Producer{}
	producer := func(topic string) *kafkax.Producer {
		if p, ok := producers[topic]; ok {
			return p
		}
		p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024, logger)
		p.Start(ctx)
		producers[topic] = p
		return p
	}

	// Push
	var sender notify.Sender
	if cfg.PushMode == config.PushModeInline {
		fcm, err := push.NewFCMSender(ctx, cfg.FirebaseProjectID, cfg.PushProviderCredential)
		if err != nil {
			logger.Fatal("fcm init", zap.Error(err))
		}
		sender = fcm
	}

	notifyRepo := &notify.Repo{DB: db}
	notifier := &notify.Service{
		Store:       notifyRepo,
		Directory:   notifyRepo,
		Sender:      sender,
		Mode:        notify.PushMode(cfg.PushMode),
		ServiceName: cfg.ServiceName,
		Logger:      logger.Named("notify"),
	}
	if cfg.PushMode == config.PushModeKafka {
		notifier.Events = producer(orders.TopicNotificationCreated)
	}

	// Orders
	stock := &inventory.Service{
		Ledger:         &inventory.LedgerRepo{DB: db},
		Dedup:          &redisx.Dedup{Client: rdb},
		ProducerOK:     producer(orders.TopicInventoryDeducted),
		ProducerReject: producer(orders.TopicInventoryRejected),
		ServiceName:    cfg.ServiceName,
		Logger:         logger.Named("inventory"),
	}
	location := orders.FixedLocation(cfg.InventoryLocation)
	if cfg.InventoryLocationPolicy == config.LocationPolicyOrder {
		location = orders.OrderLocation(cfg.InventoryLocation)
	}
	orderRepo := &orders.Repo{DB: db}
	statusCache := &redisx.StatusCache{Client: rdb}
	processor := &orders.Processor{
		Store:       orderRepo,
		Engine:      &orders.Engine{Inventory: stock, Location: location},
		Notifier:    notifier,
		Cache:       statusCache,
		Events:      producer(orders.TopicOrderStatusChanged),
		ServiceName: cfg.ServiceName,
		Logger:      logger.Named("orders"),
	}

	// Auth
	verifier, err := auth.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience)
	if err != nil {
		logger.Fatal("jwt verifier", zap.Error(err))
	}
	gate := &auth.Gate{
		Verifier:       verifier,
		Profiles:       &auth.ProfileRepo{DB: db},
		RequiredGrade:  cfg.AuthRequiredGrade,
		RequiredStatus: cfg.AuthRequiredStatus,
	}

	// HTTP
	router := httpx.NewRouter(logger.Named("http"))
	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireActor(gate, logger.Named("auth")))
		(&httpx.OrdersHandler{
			Processor: processor,
			Statuses:  orderRepo,
			Cache:     statusCache,
			Logger:    logger.Named("http"),
		}).Register(r)
		(&httpx.NotificationsHandler{Notifier: notifier, Logger: logger.Named("http")}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("push_mode", cfg.PushMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// Handlers still running publish into closed producers, which drop and log.
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
