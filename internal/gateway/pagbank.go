package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/pkg/logger"
)

const (
	pagbankLiveURL    = "https://api.pagseguro.com"
	pagbankSandboxURL = "https://sandbox.api.pagseguro.com"
)

// PagBankGateway implements Provider against the PagBank charge API
type PagBankGateway struct {
	config *PagBankConfig
	client *http.Client
	logger *logger.Logger
}

// PagBankConfig holds configuration for the PagBank gateway
type PagBankConfig struct {
	Token   string
	Sandbox bool

	// BaseURL overrides the sandbox/live selection, used by tests
	BaseURL string

	// ChargeTimeout bounds charge submissions, StatusTimeout bounds
	// status re-fetches
	ChargeTimeout time.Duration
	StatusTimeout time.Duration

	NotificationURL string
}

// NewPagBankGateway creates a new PagBank gateway. A missing token is not an
// error here; every call will fail with domain.ErrNotConfigured instead, so a
// misconfigured deploy declines charges rather than crashing at startup.
func NewPagBankGateway(config *PagBankConfig) *PagBankGateway {
	if config.ChargeTimeout <= 0 {
		config.ChargeTimeout = 30 * time.Second
	}
	if config.StatusTimeout <= 0 {
		config.StatusTimeout = 10 * time.Second
	}

	return &PagBankGateway{
		config: config,
		client: &http.Client{},
		logger: logger.Get().With(zap.String("component", "pagbank_gateway")),
	}
}

// Name returns the gateway name
func (g *PagBankGateway) Name() string {
	return "pagbank"
}

func (g *PagBankGateway) baseURL() string {
	if g.config.BaseURL != "" {
		return g.config.BaseURL
	}
	if g.config.Sandbox {
		return pagbankSandboxURL
	}
	return pagbankLiveURL
}

// Request performs one authenticated call against the provider API and
// returns the raw response body. Errors are normalized: no token is
// domain.ErrNotConfigured, transport failures and timeouts wrap
// domain.ErrNetwork, HTTP >= 400 becomes a domain.ProviderError carrying the
// status code and body.
func (g *PagBankGateway) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if g.config.Token == "" {
		return nil, fmt.Errorf("%w: missing provider token", domain.ErrNotConfigured)
	}

	var reqBody io.Reader
	var rawBody []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		rawBody = encoded
		reqBody = bytes.NewReader(encoded)
	}

	url := g.baseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.config.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	g.logger.Debug("provider request",
		zap.String("method", method),
		zap.String("path", path),
		zap.ByteString("body", redactSensitive(rawBody)),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: provider call timed out: %v", domain.ErrNetwork, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		g.logger.Warn("provider rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return nil, &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// redactSensitive masks card data in a JSON body before it reaches a log
// line. Applied to the serialized form so nested payment_method objects are
// covered without knowing the exact schema.
func redactSensitive(body []byte) []byte {
	if len(body) == 0 {
		return body
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return []byte(`"<unparseable>"`)
	}
	redactMap(parsed)

	out, err := json.Marshal(parsed)
	if err != nil {
		return []byte(`"<unparseable>"`)
	}
	return out
}

func redactMap(m map[string]any) {
	for key, value := range m {
		switch key {
		case "number", "card_number", "security_code", "cvv", "token":
			m[key] = "[REDACTED]"
		default:
			switch v := value.(type) {
			case map[string]any:
				redactMap(v)
			case []any:
				for _, item := range v {
					if nested, ok := item.(map[string]any); ok {
						redactMap(nested)
					}
				}
			}
		}
	}
}

// pagbankCharge is the provider wire format for a charge, outbound and inbound
type pagbankCharge struct {
	ID               string               `json:"id,omitempty"`
	ReferenceID      string               `json:"reference_id"`
	Status           string               `json:"status,omitempty"`
	Description      string               `json:"description,omitempty"`
	Amount           pagbankAmount        `json:"amount"`
	PaymentMethod    pagbankPaymentMethod `json:"payment_method"`
	Splits           []pagbankSplit       `json:"splits,omitempty"`
	Customer         *pagbankCustomer     `json:"customer,omitempty"`
	Items            []pagbankItem        `json:"items,omitempty"`
	NotificationURLs []string             `json:"notification_urls,omitempty"`
	Links            []pagbankLink        `json:"links,omitempty"`
}

type pagbankAmount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type pagbankPaymentMethod struct {
	Type         string       `json:"type"`
	Installments int          `json:"installments,omitempty"`
	Capture      bool         `json:"capture,omitempty"`
	Card         *pagbankCard `json:"card,omitempty"`

	// PIX
	ExpirationDate string         `json:"expiration_date,omitempty"`
	QRCode         *pagbankQRCode `json:"qr_code,omitempty"`

	// Boleto
	Boleto *pagbankBoleto `json:"boleto,omitempty"`
}

type pagbankCard struct {
	Number       string `json:"number"`
	SecurityCode string `json:"security_code"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	Holder       struct {
		Name string `json:"name"`
	} `json:"holder"`
}

type pagbankQRCode struct {
	Text  string        `json:"text,omitempty"`
	Links []pagbankLink `json:"links,omitempty"`
}

type pagbankBoleto struct {
	DueDate          string   `json:"due_date"`
	InstructionLines []string `json:"instruction_lines,omitempty"`
	Holder           struct {
		Name    string `json:"name"`
		TaxID   string `json:"tax_id"`
		Address struct {
			Street     string `json:"street,omitempty"`
			City       string `json:"city,omitempty"`
			RegionCode string `json:"region_code,omitempty"`
			PostalCode string `json:"postal_code,omitempty"`
		} `json:"address"`
	} `json:"holder"`
	Barcode          string `json:"barcode,omitempty"`
	FormattedBarcode string `json:"formatted_barcode,omitempty"`
}

type pagbankSplit struct {
	AccountID string        `json:"account_id"`
	Amount    pagbankAmount `json:"amount"`
}

type pagbankCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id,omitempty"`
}

type pagbankItem struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type pagbankLink struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Media string `json:"media,omitempty"`
}

// CreateCharge submits a charge to PagBank
func (g *PagBankGateway) CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}

	payload, err := g.buildChargePayload(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.ChargeTimeout)
	defer cancel()

	raw, err := g.Request(ctx, http.MethodPost, "/charges", payload)
	if err != nil {
		return nil, err
	}

	var charge pagbankCharge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	resp := &ChargeResponse{
		ChargeID:    charge.ID,
		ReferenceID: charge.ReferenceID,
		Status:      ProviderStatus(charge.Status),
		Raw:         raw,
	}

	if qr := charge.PaymentMethod.QRCode; qr != nil {
		resp.QRCode = qr.Text
		resp.ExpiresAt = charge.PaymentMethod.ExpirationDate
		for _, link := range qr.Links {
			if link.Rel == "qr_code.png" || link.Media == "image/png" {
				resp.QRCodeImage = link.Href
			}
		}
	}
	if b := charge.PaymentMethod.Boleto; b != nil {
		resp.Barcode = b.Barcode
		resp.FormattedBarcode = b.FormattedBarcode
		resp.DueDate = b.DueDate
		for _, link := range charge.Links {
			if link.Media == "application/pdf" {
				resp.PDFURL = link.Href
			}
		}
	}

	g.logger.Info("charge submitted",
		zap.String("charge_id", resp.ChargeID),
		zap.String("reference_id", resp.ReferenceID),
		zap.String("status", string(resp.Status)),
		zap.String("method", string(req.Method)),
		zap.Int64("amount", req.Amount),
	)

	return resp, nil
}

// GetCharge fetches the authoritative charge state from PagBank
func (g *PagBankGateway) GetCharge(ctx context.Context, chargeID string) (*ChargeInfo, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("charge id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.StatusTimeout)
	defer cancel()

	raw, err := g.Request(ctx, http.MethodGet, "/charges/"+chargeID, nil)
	if err != nil {
		return nil, err
	}

	var charge pagbankCharge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}

	return &ChargeInfo{
		ChargeID:    charge.ID,
		ReferenceID: charge.ReferenceID,
		Status:      ProviderStatus(charge.Status),
		Amount:      charge.Amount.Value,
		Raw:         raw,
	}, nil
}

func (g *PagBankGateway) buildChargePayload(req *ChargeRequest) (*pagbankCharge, error) {
	charge := &pagbankCharge{
		ReferenceID: req.ReferenceID,
		Amount: pagbankAmount{
			Value:    req.Amount,
			Currency: req.Currency,
		},
		Customer: &pagbankCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			TaxID: req.Customer.TaxID,
		},
	}

	for _, item := range req.Items {
		charge.Items = append(charge.Items, pagbankItem{
			ReferenceID: item.ReferenceID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
		})
	}

	notificationURL := req.NotificationURL
	if notificationURL == "" {
		notificationURL = g.config.NotificationURL
	}
	if notificationURL != "" {
		charge.NotificationURLs = []string{notificationURL}
	}

	for _, recipient := range req.Split {
		charge.Splits = append(charge.Splits, pagbankSplit{
			AccountID: recipient.AccountID,
			Amount: pagbankAmount{
				Value:    recipient.Amount,
				Currency: req.Currency,
			},
		})
	}

	switch req.Method {
	case domain.PaymentMethodPix:
		if req.Pix == nil {
			return nil, fmt.Errorf("pix detail is required for pix charges")
		}
		charge.PaymentMethod = pagbankPaymentMethod{
			Type:           "PIX",
			ExpirationDate: time.Now().Add(req.Pix.Expiration).Format(time.RFC3339),
		}
	case domain.PaymentMethodCreditCard:
		if req.Card == nil {
			return nil, fmt.Errorf("card detail is required for card charges")
		}
		card := &pagbankCard{
			Number:       req.Card.Number,
			SecurityCode: req.Card.CVV,
			ExpMonth:     req.Card.ExpMonth,
			ExpYear:      req.Card.ExpYear,
		}
		card.Holder.Name = req.Card.HolderName
		charge.PaymentMethod = pagbankPaymentMethod{
			Type:         "CREDIT_CARD",
			Installments: req.Card.Installments,
			Capture:      true,
			Card:         card,
		}
	case domain.PaymentMethodBoleto:
		if req.Boleto == nil {
			return nil, fmt.Errorf("boleto detail is required for boleto charges")
		}
		boleto := &pagbankBoleto{
			DueDate: req.Boleto.DueDate.Format("2006-01-02"),
		}
		if req.Boleto.Instructions != "" {
			boleto.InstructionLines = []string{req.Boleto.Instructions}
		}
		boleto.Holder.Name = req.Boleto.HolderName
		boleto.Holder.TaxID = req.Boleto.HolderTaxID
		boleto.Holder.Address.Street = req.Boleto.Street
		boleto.Holder.Address.City = req.Boleto.City
		boleto.Holder.Address.RegionCode = req.Boleto.Region
		boleto.Holder.Address.PostalCode = req.Boleto.PostalCode
		charge.PaymentMethod = pagbankPaymentMethod{
			Type:   "BOLETO",
			Boleto: boleto,
		}
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", req.Method)
	}

	return charge, nil
}
