package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/metrics"
	"github.com/hngpay/splitpay/internal/orders"
	"github.com/hngpay/splitpay/internal/reconciler"
	"github.com/hngpay/splitpay/pkg/config"
	"github.com/hngpay/splitpay/pkg/database"
	"github.com/hngpay/splitpay/pkg/kafka"
	"github.com/hngpay/splitpay/pkg/logger"
	pkgredis "github.com/hngpay/splitpay/pkg/redis"
)

const (
	// sweepInterval is how often pending charges are re-checked
	defaultSweepInterval = time.Minute

	// sweepAge keeps freshly submitted charges out of the sweep so normal
	// webhook delivery gets a chance first
	defaultSweepAge = 5 * time.Minute

	// sweepBatch caps provider re-fetches per sweep
	defaultSweepBatch = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: "reconcile-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting reconcile worker...")

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Database:       cfg.Database.DBName,
		SSLMode:        cfg.Database.SSLMode,
		MaxConns:       10,
		MinConns:       2,
		ConnectTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetryInterval:  time.Second,
	})
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Redis connection failed, dedupe disabled: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: "reconcile-worker",
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, settlement events disabled: %v", err))
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	provider, err := gateway.NewProvider(&cfg.Provider)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to create payment provider: %v", err))
	}

	// The order subsystem lives in another service; the empty stand-in store
	// means order sync is skipped here and settlement outcomes travel via the
	// ledger and the settlement events.
	rec := reconciler.New(
		provider,
		ledger.NewPostgresLedger(db),
		orders.NewMemoryStore(),
		redisClient,
		producer,
		cfg.Kafka.SettlementTopic,
	)

	interval := envDuration("RECONCILE_SWEEP_INTERVAL", defaultSweepInterval)
	age := envDuration("RECONCILE_SWEEP_AGE", defaultSweepAge)
	batch := envInt("RECONCILE_SWEEP_BATCH", defaultSweepBatch)

	appLog.Info(fmt.Sprintf("Sweeping pending charges every %s (age > %s, batch %d)", interval, age, batch))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			swept, err := rec.SweepPending(ctx, age, batch)
			if err != nil {
				appLog.Error(fmt.Sprintf("Sweep failed: %v", err))
				continue
			}
			if swept > 0 {
				appLog.Info(fmt.Sprintf("Sweep examined %d pending charges", swept))
			}
		case <-quit:
			appLog.Info("Shutting down reconcile worker...")
			return
		}
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
