package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/feecalc"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/metrics"
	"github.com/hngpay/splitpay/internal/orders"
	"github.com/hngpay/splitpay/internal/split"
	"github.com/hngpay/splitpay/pkg/logger"
)

// FeeCalculator produces a validated fee quote for a charge attempt
type FeeCalculator interface {
	Calculate(ctx context.Context, req *feecalc.QuoteRequest) (*domain.FeeQuote, error)
}

// Registrar reports settled charges back to the fee authority, best effort
type Registrar interface {
	RegisterTransaction(ctx context.Context, record *domain.TransactionRecord)
}

// Config holds method-specific charge settings
type Config struct {
	// PixExpiration is how long the QR code stays payable
	PixExpiration time.Duration

	// BoletoDueDays is how many days from today the slip is due
	BoletoDueDays int

	// MaxInstallments caps card installments
	MaxInstallments int
}

// CardInput carries card data from the checkout form straight to the
// provider request. Never stored, never logged.
type CardInput struct {
	Number       string
	CVV          string
	HolderName   string
	ExpMonth     int
	ExpYear      int
	Installments int
}

// ChargeInput is one charge attempt as requested by the checkout flow
type ChargeInput struct {
	OrderID     string
	Method      domain.PaymentMethod
	ProductType domain.ProductType
	Card        *CardInput
}

// Processor runs a charge attempt end to end: quote the fees, attach the
// split instruction, submit to the provider, append the ledger entry and
// reflect the outcome on the order. Submission is never retried here; a
// timeout is a definite failure and any client retry goes through the
// idempotency middleware instead.
type Processor struct {
	gateway    gateway.Provider
	calculator FeeCalculator
	splitter   split.RuleBuilder
	ledger     ledger.Ledger
	orders     orders.Store
	registrar  Registrar
	config     Config
	logger     *logger.Logger
}

// New creates a payment processor
func New(gw gateway.Provider, calc FeeCalculator, splitter split.RuleBuilder, lg ledger.Ledger, store orders.Store, registrar Registrar, cfg Config) *Processor {
	if cfg.PixExpiration <= 0 {
		cfg.PixExpiration = 30 * time.Minute
	}
	if cfg.BoletoDueDays <= 0 {
		cfg.BoletoDueDays = 3
	}
	if cfg.MaxInstallments <= 0 {
		cfg.MaxInstallments = 12
	}

	return &Processor{
		gateway:    gw,
		calculator: calc,
		splitter:   splitter,
		ledger:     lg,
		orders:     store,
		registrar:  registrar,
		config:     cfg,
		logger:     logger.Get().With(zap.String("component", "payment_processor")),
	}
}

// Process runs one charge attempt. Errors that belong to the customer
// (declined card, provider outage) come back as a failed PaymentResult with
// a generic message; an error return means the request itself was bad or
// the order could not be loaded.
func (p *Processor) Process(ctx context.Context, input *ChargeInput) (*domain.PaymentResult, error) {
	order, err := p.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := p.validateInput(input, order); err != nil {
		return nil, err
	}

	quote, err := p.calculator.Calculate(ctx, &feecalc.QuoteRequest{
		Amount:      order.Total,
		ProductType: input.ProductType,
		Gateway:     p.gateway.Name(),
		Method:      input.Method,
	})
	if err != nil {
		return nil, err
	}

	rule, err := p.splitter.Build(ctx, quote)
	if err != nil {
		return nil, err
	}

	reference, err := domain.NewChargeReference(order.ID)
	if err != nil {
		return nil, err
	}

	req, err := p.buildChargeRequest(order, input, reference.String(), rule)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := p.gateway.CreateCharge(ctx, req)
	if err != nil {
		return p.submissionFailure(ctx, order, input.Method, err), nil
	}
	metrics.RecordChargeSubmitted(ctx, string(input.Method), p.gateway.Name(), order.Total, time.Since(started).Seconds())

	record, err := domain.NewTransactionRecord(order.ID, resp.ChargeID, p.gateway.Name(), input.Method, quote)
	if err != nil {
		return nil, err
	}
	p.attachMeta(record, resp)

	if _, err := p.ledger.Record(ctx, record); err != nil && !errors.Is(err, domain.ErrTransactionExists) {
		// The charge exists at the provider but not in the ledger. The
		// reconcile sweep cannot see it, so this is loud.
		p.logger.Error("charge submitted but ledger write failed",
			zap.String("order_id", order.ID),
			zap.String("external_ref", resp.ChargeID),
			zap.Error(err),
		)
	}

	if p.registrar != nil {
		p.registrar.RegisterTransaction(ctx, record)
	}

	return p.settleSubmission(ctx, order, input.Method, resp)
}

func (p *Processor) validateInput(input *ChargeInput, order *orders.Order) error {
	if order.Total <= 0 {
		return fmt.Errorf("order %s has non-positive total %d", order.ID, order.Total)
	}

	switch input.Method {
	case domain.PaymentMethodPix, domain.PaymentMethodBoleto:
		return nil
	case domain.PaymentMethodCreditCard:
		if input.Card == nil {
			return errors.New("card data is required for credit_card charges")
		}
		if input.Card.Installments < 1 || input.Card.Installments > p.config.MaxInstallments {
			return fmt.Errorf("installments %d outside allowed range 1..%d",
				input.Card.Installments, p.config.MaxInstallments)
		}
		return nil
	default:
		return fmt.Errorf("unsupported payment method: %s", input.Method)
	}
}

func (p *Processor) buildChargeRequest(order *orders.Order, input *ChargeInput, reference string, rule domain.SplitRule) (*gateway.ChargeRequest, error) {
	req := &gateway.ChargeRequest{
		ReferenceID: reference,
		Amount:      order.Total,
		Currency:    order.Currency,
		Method:      input.Method,
		Split:       rule,
		Customer: gateway.Customer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			TaxID: order.CustomerTaxID,
		},
	}
	if req.Currency == "" {
		req.Currency = "BRL"
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, gateway.Item{
			ReferenceID: item.ProductID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitPrice,
		})
	}

	switch input.Method {
	case domain.PaymentMethodPix:
		p.buildPixRequest(req)
	case domain.PaymentMethodCreditCard:
		p.buildCardRequest(req, input.Card)
	case domain.PaymentMethodBoleto:
		p.buildBoletoRequest(req, order)
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", input.Method)
	}

	return req, nil
}

// submissionFailure turns a provider error into a customer-safe declined
// result. The raw error stays in the logs only.
func (p *Processor) submissionFailure(ctx context.Context, order *orders.Order, method domain.PaymentMethod, err error) *domain.PaymentResult {
	p.logger.Warn("charge submission failed",
		zap.String("order_id", order.ID),
		zap.String("method", string(method)),
		zap.Error(err),
	)

	if syncErr := p.orders.AddNote(ctx, order.ID, fmt.Sprintf("charge submission failed: %s", errKind(err))); syncErr != nil {
		p.logger.Warn("failed to note submission failure on order",
			zap.String("order_id", order.ID),
			zap.Error(syncErr),
		)
	}

	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return domain.FailedResult(method, domain.ErrNotConfigured, "payment method is not available right now")
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrGatewayUnavailable):
		return domain.FailedResult(method, domain.ErrGatewayUnavailable, "payment service is temporarily unavailable, please try again")
	case errors.Is(err, domain.ErrProviderRejected):
		return domain.FailedResult(method, domain.ErrProviderRejected, "payment was declined")
	default:
		return domain.FailedResult(method, err, "payment could not be processed")
	}
}

func errKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrProviderRejected):
		return "provider_rejected"
	default:
		return "internal"
	}
}

// attachMeta copies the provider artifacts onto the ledger entry so the
// transaction view can replay them without another provider call
func (p *Processor) attachMeta(record *domain.TransactionRecord, resp *gateway.ChargeResponse) {
	if resp.QRCode != "" {
		record.Meta["qr_code"] = resp.QRCode
	}
	if resp.QRCodeImage != "" {
		record.Meta["qr_code_image"] = resp.QRCodeImage
	}
	if resp.ExpiresAt != "" {
		record.Meta["expires_at"] = resp.ExpiresAt
	}
	if resp.Barcode != "" {
		record.Meta["barcode"] = resp.Barcode
	}
	if resp.FormattedBarcode != "" {
		record.Meta["formatted_barcode"] = resp.FormattedBarcode
	}
	if resp.PDFURL != "" {
		record.Meta["pdf_url"] = resp.PDFURL
	}
	if resp.DueDate != "" {
		record.Meta["due_date"] = resp.DueDate
	}
}

// settleSubmission reflects the synchronous provider answer on the order and
// builds the result handed back to the checkout flow
func (p *Processor) settleSubmission(ctx context.Context, order *orders.Order, method domain.PaymentMethod, resp *gateway.ChargeResponse) (*domain.PaymentResult, error) {
	switch method {
	case domain.PaymentMethodPix:
		return p.settlePix(ctx, order, resp)
	case domain.PaymentMethodCreditCard:
		return p.settleCard(ctx, order, resp)
	case domain.PaymentMethodBoleto:
		return p.settleBoleto(ctx, order, resp)
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", method)
	}
}

// declineSubmitted handles a charge the provider declined in the synchronous
// answer: the ledger entry moves to failed, the order is left untouched so
// the caller can retry with different card data or another method.
func (p *Processor) declineSubmitted(ctx context.Context, order *orders.Order, method domain.PaymentMethod, resp *gateway.ChargeResponse) *domain.PaymentResult {
	if _, err := p.ledger.UpdateStatus(ctx, resp.ChargeID, domain.TransactionStatusFailed); err != nil {
		p.logger.Error("failed to mark declined charge in ledger",
			zap.String("order_id", order.ID),
			zap.String("external_ref", resp.ChargeID),
			zap.Error(err),
		)
	}

	result := domain.FailedResult(method, domain.ErrProviderRejected, "payment was declined")
	result.ExternalRef = resp.ChargeID
	return result
}

// storeOrderMeta writes provider artifacts onto the order, logging instead
// of failing when the order store rejects them
func (p *Processor) storeOrderMeta(ctx context.Context, orderID string, meta map[string]string) {
	for key, value := range meta {
		if value == "" {
			continue
		}
		if err := p.orders.SetMeta(ctx, orderID, key, value); err != nil {
			p.logger.Warn("failed to store order meta",
				zap.String("order_id", orderID),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}
