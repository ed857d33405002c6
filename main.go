package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hngpay/splitpay/internal/di"
	"github.com/hngpay/splitpay/internal/feecalc"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/metrics"
	"github.com/hngpay/splitpay/internal/orders"
	"github.com/hngpay/splitpay/internal/processor"
	"github.com/hngpay/splitpay/pkg/config"
	"github.com/hngpay/splitpay/pkg/database"
	"github.com/hngpay/splitpay/pkg/kafka"
	"github.com/hngpay/splitpay/pkg/logger"
	"github.com/hngpay/splitpay/pkg/middleware"
	pkgredis "github.com/hngpay/splitpay/pkg/redis"
	"github.com/hngpay/splitpay/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting split settlement engine...")

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer telemetry.Shutdown(ctx)

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Database
	var db *database.PostgresDB
	db, err = database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Database connection failed: %v", err))
		db = nil
	} else {
		defer db.Close()
		appLog.Info("Database connected")
	}

	// Redis
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		MaxRetries:   3,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Redis connection failed: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	// Kafka producer for settlement events
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, settlement events disabled: %v", err))
			producer = nil
		} else {
			defer producer.Close()
			appLog.Info("Kafka producer connected")
		}
	}

	// Payment provider
	provider, err := gateway.NewProvider(&cfg.Provider)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to create payment provider: %v", err))
	}
	appLog.Info(fmt.Sprintf("Using %s payment provider", provider.Name()))

	// Ledger
	var ledgerStore ledger.Ledger
	if db != nil {
		ledgerStore = ledger.NewPostgresLedger(db)
		appLog.Info("Using PostgreSQL ledger")
	} else {
		ledgerStore = ledger.NewMemoryLedger()
		appLog.Warn("Using in-memory ledger (data will not persist)")
	}

	container := di.NewContainer(&di.ContainerConfig{
		DB:       db,
		Redis:    redisClient,
		Provider: provider,
		Authority: feecalc.NewAuthorityClient(&feecalc.AuthorityConfig{
			BaseURL: cfg.FeeAuthority.BaseURL,
			Timeout: cfg.FeeAuthority.Timeout,
		}),
		Ledger:          ledgerStore,
		Orders:          orders.NewMemoryStore(),
		KafkaProducer:   producer,
		SettlementTopic: cfg.Kafka.SettlementTopic,
		WebhookToken:    cfg.Provider.WebhookToken,
		ProcessorConfig: processorConfig(cfg),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/health/ready", container.HealthHandler.Health)
	router.GET("/health/live", container.HealthHandler.Live)
	router.POST("/webhooks/provider", container.WebhookHandler.HandleProviderWebhook)

	v1 := router.Group("/api/v1")
	{
		if redisClient != nil {
			idem := middleware.Idempotency(&middleware.IdempotencyConfig{Redis: redisClient})
			v1.POST("/charges", idem, container.PaymentHandler.CreateCharge)
		} else {
			v1.POST("/charges", container.PaymentHandler.CreateCharge)
		}
		v1.GET("/transactions/:ref", container.PaymentHandler.GetTransaction)
		v1.GET("/transactions/order/:orderId", container.PaymentHandler.ListOrderTransactions)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

func processorConfig(cfg *config.Config) processor.Config {
	return processor.Config{
		PixExpiration:   cfg.Provider.PixExpiration,
		BoletoDueDays:   cfg.Provider.BoletoDueDays,
		MaxInstallments: cfg.Provider.MaxInstallments,
	}
}
