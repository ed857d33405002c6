package feecalc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/metrics"
	"github.com/hngpay/splitpay/pkg/logger"
	"github.com/hngpay/splitpay/pkg/retry"
)

// Quoter fetches a fee quote from the remote authority
type Quoter interface {
	FetchQuote(ctx context.Context, req *QuoteRequest) (*domain.FeeQuote, error)
}

// Calculator produces the fee quote for a charge attempt. The remote
// authority is tried first with a single retry; when it is unreachable or
// returns an invalid quote, the local tier table takes over and the quote is
// marked as fallback so downstream accounting can reconcile later.
type Calculator struct {
	authority Quoter
	retrier   *retry.Retrier
	logger    *logger.Logger
}

// NewCalculator creates a fee calculator backed by the given authority
func NewCalculator(authority Quoter) *Calculator {
	return &Calculator{
		authority: authority,
		retrier: retry.New(&retry.Config{
			MaxRetries:      1,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
		}),
		logger: logger.Get().With(zap.String("component", "fee_calculator")),
	}
}

// Calculate returns a validated fee quote for the given charge parameters.
// The returned quote always satisfies plugin + gateway + net == gross.
func (c *Calculator) Calculate(ctx context.Context, req *QuoteRequest) (*domain.FeeQuote, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: gross amount %d must be positive", domain.ErrInvalidFeeQuote, req.Amount)
	}
	if req.ProductType == "" {
		req.ProductType = domain.ProductTypePhysical
	}

	quote, err := c.fetchRemote(ctx, req)
	if err != nil {
		c.logger.Warn("fee authority unavailable, using fallback table",
			zap.Int64("amount", req.Amount),
			zap.String("gateway", req.Gateway),
			zap.Error(err),
		)
		metrics.RecordFallbackQuote(ctx, req.Gateway)
		quote = fallbackQuote(req.Amount, req.ProductType, req.Gateway, req.Method)
	}

	if err := quote.Validate(); err != nil {
		return nil, err
	}

	c.logger.Info("fee quote issued",
		zap.Int64("gross", quote.GrossAmount),
		zap.Int64("plugin_fee", quote.PluginFee),
		zap.Int64("gateway_fee", quote.GatewayFee),
		zap.Int64("net", quote.NetAmount),
		zap.Int("tier", quote.Tier),
		zap.Bool("is_fallback", quote.IsFallback),
		zap.Int("split_recipients", len(quote.SplitRules)),
	)

	return quote, nil
}

// fetchRemote tries the authority with one retry, then validates its answer.
// An invalid remote quote is treated as a failed fetch so the caller falls
// back instead of declining the charge on an authority bug.
func (c *Calculator) fetchRemote(ctx context.Context, req *QuoteRequest) (*domain.FeeQuote, error) {
	var quote *domain.FeeQuote
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		fetched, err := c.authority.FetchQuote(ctx, req)
		if err != nil {
			return err
		}
		quote = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := quote.Validate(); err != nil {
		c.logger.Error("fee authority returned an invalid quote",
			zap.Int64("gross", quote.GrossAmount),
			zap.Int64("plugin_fee", quote.PluginFee),
			zap.Int64("gateway_fee", quote.GatewayFee),
			zap.Int64("net", quote.NetAmount),
			zap.Error(err),
		)
		metrics.RecordInvalidQuote(ctx, req.Gateway)
		return nil, err
	}
	return quote, nil
}
