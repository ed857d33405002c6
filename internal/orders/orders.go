package orders

import (
	"context"

	"github.com/hngpay/splitpay/internal/domain"
)

// Status is the order lifecycle state owned by the surrounding order
// subsystem. The engine only ever requests transitions, it never owns storage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// LineItem is one priced order line
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is the read view the engine receives from the order subsystem.
// Total and item prices are in centavos.
type Order struct {
	ID            string               `json:"id"`
	Total         int64                `json:"total"`
	Currency      string               `json:"currency"`
	Items         []LineItem           `json:"items"`
	CustomerEmail string               `json:"customer_email"`
	CustomerName  string               `json:"customer_name"`
	CustomerTaxID string               `json:"customer_tax_id"`
	Status        Status               `json:"status"`
	Method        domain.PaymentMethod `json:"payment_method"`
}

// Store is the contract to the order subsystem. Implementations live outside
// the engine; the in-memory one here backs tests and local development.
type Store interface {
	// Get returns the order or domain.ErrOrderNotFound
	Get(ctx context.Context, id string) (*Order, error)

	// UpdateStatus transitions the order and appends an audit note
	UpdateStatus(ctx context.Context, id string, status Status, note string) error

	// SetMeta writes a key/value pair onto the order (qr codes, barcodes, ...)
	SetMeta(ctx context.Context, id, key, value string) error

	// GetMeta reads a previously written key, empty string when absent
	GetMeta(ctx context.Context, id, key string) (string, error)

	// AddNote appends an audit note without changing status
	AddNote(ctx context.Context, id, note string) error
}
