package di

import (
	"github.com/hngpay/splitpay/internal/feecalc"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/handler"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/orders"
	"github.com/hngpay/splitpay/internal/processor"
	"github.com/hngpay/splitpay/internal/reconciler"
	"github.com/hngpay/splitpay/internal/split"
	"github.com/hngpay/splitpay/pkg/database"
	"github.com/hngpay/splitpay/pkg/kafka"
	"github.com/hngpay/splitpay/pkg/redis"
)

// Container holds all dependencies for the settlement engine
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Domain wiring
	Provider   gateway.Provider
	Authority  *feecalc.AuthorityClient
	Calculator *feecalc.Calculator
	Splitter   split.RuleBuilder
	Ledger     ledger.Ledger
	Orders     orders.Store
	Processor  *processor.Processor
	Reconciler *reconciler.Reconciler

	// Handlers
	HealthHandler  *handler.HealthHandler
	PaymentHandler *handler.PaymentHandler
	WebhookHandler *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB              *database.PostgresDB
	Redis           *redis.Client
	Provider        gateway.Provider
	Authority       *feecalc.AuthorityClient
	Ledger          ledger.Ledger
	Orders          orders.Store
	KafkaProducer   *kafka.Producer
	SettlementTopic string
	WebhookToken    string
	ProcessorConfig processor.Config
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		Provider:  cfg.Provider,
		Authority: cfg.Authority,
		Ledger:    cfg.Ledger,
		Orders:    cfg.Orders,
	}

	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.Calculator = feecalc.NewCalculator(cfg.Authority)
	c.Splitter = split.NewPassthroughBuilder()

	var registrar processor.Registrar
	if cfg.Authority != nil {
		registrar = cfg.Authority
	}
	c.Processor = processor.New(
		c.Provider,
		c.Calculator,
		c.Splitter,
		c.Ledger,
		c.Orders,
		registrar,
		cfg.ProcessorConfig,
	)
	c.Reconciler = reconciler.New(
		c.Provider,
		c.Ledger,
		c.Orders,
		c.Redis,
		cfg.KafkaProducer,
		cfg.SettlementTopic,
	)

	c.PaymentHandler = handler.NewPaymentHandler(c.Processor, c.Ledger)
	c.WebhookHandler = handler.NewWebhookHandler(c.Reconciler, cfg.WebhookToken)

	return c
}
