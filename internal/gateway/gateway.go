package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hngpay/splitpay/internal/domain"
)

// ProviderStatus is the provider's charge status vocabulary
type ProviderStatus string

const (
	StatusPaid       ProviderStatus = "PAID"
	StatusAuthorized ProviderStatus = "AUTHORIZED"
	StatusWaiting    ProviderStatus = "WAITING"
	StatusInAnalysis ProviderStatus = "IN_ANALYSIS"
	StatusDeclined   ProviderStatus = "DECLINED"
	StatusCanceled   ProviderStatus = "CANCELED"
	StatusRefunded   ProviderStatus = "REFUNDED"
)

// Settlement maps the provider vocabulary onto the internal ledger states.
// Unknown statuses map to pending so a new provider status can never
// confirm or decline a charge by accident.
func (s ProviderStatus) Settlement() domain.TransactionStatus {
	switch s {
	case StatusPaid:
		return domain.TransactionStatusConfirmed
	case StatusDeclined, StatusCanceled:
		return domain.TransactionStatusFailed
	case StatusRefunded:
		return domain.TransactionStatusRefunded
	default:
		// AUTHORIZED, WAITING, IN_ANALYSIS and anything unrecognized
		return domain.TransactionStatusPending
	}
}

// Customer identifies the payer on the outbound charge
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id,omitempty"`
}

// Item is one order line forwarded to the provider
type Item struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

// CardDetail carries card fields through to the provider. They exist only in
// the outbound request body: never persisted, never logged.
type CardDetail struct {
	Number       string `json:"number"`
	CVV          string `json:"security_code"`
	HolderName   string `json:"holder_name"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	Installments int    `json:"installments"`
}

// PixDetail configures a QR-code charge
type PixDetail struct {
	Expiration time.Duration `json:"-"`
}

// BoletoDetail configures a bank-slip charge
type BoletoDetail struct {
	DueDate      time.Time `json:"due_date"`
	Instructions string    `json:"instruction_lines,omitempty"`
	HolderName   string    `json:"holder_name"`
	HolderTaxID  string    `json:"holder_tax_id"`
	Street       string    `json:"street,omitempty"`
	City         string    `json:"city,omitempty"`
	Region       string    `json:"region_code,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
}

// ChargeRequest is the normalized outbound charge, independent of method
type ChargeRequest struct {
	ReferenceID string               `json:"reference_id"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
	Customer    Customer             `json:"customer"`
	Items       []Item               `json:"items"`
	Method      domain.PaymentMethod `json:"method"`

	Pix    *PixDetail    `json:"pix,omitempty"`
	Card   *CardDetail   `json:"card,omitempty"`
	Boleto *BoletoDetail `json:"boleto,omitempty"`

	// Split is attached to the provider payload only when non-empty
	Split domain.SplitRule `json:"split,omitempty"`

	NotificationURL string `json:"notification_url,omitempty"`
}

// ChargeResponse is the normalized provider answer to a charge submission
type ChargeResponse struct {
	ChargeID    string         `json:"charge_id"`
	ReferenceID string         `json:"reference_id"`
	Status      ProviderStatus `json:"status"`

	// PIX artifacts
	QRCode      string `json:"qr_code,omitempty"`
	QRCodeImage string `json:"qr_code_image,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`

	// Boleto artifacts
	Barcode          string `json:"barcode,omitempty"`
	FormattedBarcode string `json:"formatted_barcode,omitempty"`
	PDFURL           string `json:"pdf_url,omitempty"`
	DueDate          string `json:"due_date,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ChargeInfo is the authoritative charge state from a status re-fetch
type ChargeInfo struct {
	ChargeID    string          `json:"charge_id"`
	ReferenceID string          `json:"reference_id"`
	Status      ProviderStatus  `json:"status"`
	Amount      int64           `json:"amount"`
	Raw         json.RawMessage `json:"-"`
}

// Provider is the normalized payment provider boundary. CreateCharge uses the
// 30s charge timeout, GetCharge the shorter status timeout; both treat a
// timeout as a definite failure, never as success.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	GetCharge(ctx context.Context, chargeID string) (*ChargeInfo, error)
}
