package feecalc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/pkg/logger"
)

// AuthorityClient talks to the remote fee authority, the service that owns
// the current rate tables and split rules.
type AuthorityClient struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// AuthorityConfig holds fee authority connection settings
type AuthorityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewAuthorityClient creates a fee authority client
func NewAuthorityClient(cfg *AuthorityConfig) *AuthorityClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthorityClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Get().With(zap.String("component", "fee_authority")),
	}
}

// QuoteRequest is the outbound fee calculation request
type QuoteRequest struct {
	Amount      int64                `json:"amount"`
	ProductType domain.ProductType   `json:"product_type"`
	Gateway     string               `json:"gateway"`
	Method      domain.PaymentMethod `json:"payment_method"`
}

type quoteResponse struct {
	PluginFee  int64 `json:"plugin_fee"`
	GatewayFee int64 `json:"gateway_fee"`
	NetAmount  int64 `json:"net_amount"`
	Tier       int   `json:"tier"`
	SplitRules []struct {
		AccountID string `json:"account_id"`
		Amount    int64  `json:"amount"`
	} `json:"split_rules"`
}

// FetchQuote asks the authority for a fee quote. A non-2xx answer or an
// undecodable body is an error; validation of the returned amounts happens
// in the calculator so authority bugs surface as ErrInvalidFeeQuote there.
func (c *AuthorityClient) FetchQuote(ctx context.Context, req *QuoteRequest) (*domain.FeeQuote, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: fee authority base url not set", domain.ErrNotConfigured)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calculate-fee", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: fee authority unreachable: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read quote response: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fee authority returned %d: %s", resp.StatusCode, respBody)
	}

	var decoded quoteResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	quote := &domain.FeeQuote{
		GrossAmount: req.Amount,
		ProductType: req.ProductType,
		Gateway:     req.Gateway,
		Method:      req.Method,
		PluginFee:   decoded.PluginFee,
		GatewayFee:  decoded.GatewayFee,
		NetAmount:   decoded.NetAmount,
		Tier:        decoded.Tier,
		IsFallback:  false,
	}
	for _, rule := range decoded.SplitRules {
		quote.SplitRules = append(quote.SplitRules, domain.SplitRecipient{
			AccountID: rule.AccountID,
			Amount:    rule.Amount,
		})
	}
	return quote, nil
}

// RegisterTransaction reports a settled charge back to the authority for its
// revenue bookkeeping. Best effort: failures are logged, never propagated.
func (c *AuthorityClient) RegisterTransaction(ctx context.Context, record *domain.TransactionRecord) {
	if c.baseURL == "" {
		return
	}

	payload := map[string]any{
		"external_ref": record.ExternalRef,
		"order_id":     record.OrderID,
		"gross_amount": record.GrossAmount,
		"fee_amount":   record.FeeAmount,
		"net_amount":   record.NetAmount,
		"gateway":      record.Gateway,
		"method":       record.Method,
		"tier":         record.Tier,
		"is_fallback":  record.IsFallback,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("failed to encode transaction registration", zap.Error(err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register-transaction", bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("failed to build transaction registration", zap.Error(err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("transaction registration failed",
			zap.String("external_ref", record.ExternalRef),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		c.logger.Warn("transaction registration rejected",
			zap.String("external_ref", record.ExternalRef),
			zap.Int("status_code", resp.StatusCode),
		)
	}
}
