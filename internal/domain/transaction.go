package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the settlement state of a ledger entry (matches DB ENUM)
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// PaymentMethod is the customer-facing payment instrument
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodBoleto     PaymentMethod = "boleto"
)

// TransactionRecord is one append-only ledger entry: a single charge attempt
// and its settlement outcome. Fee and gross amounts are written once at
// submission time and never rewritten; only status moves afterwards.
type TransactionRecord struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	ExternalRef string            `json:"external_ref"`
	GrossAmount int64             `json:"gross_amount"`
	FeeAmount   int64             `json:"fee_amount"`
	NetAmount   int64             `json:"net_amount"`
	Status      TransactionStatus `json:"status"`
	Gateway     string            `json:"gateway"`
	Method      PaymentMethod     `json:"payment_method"`
	Tier        int               `json:"tier"`
	IsFallback  bool              `json:"is_fallback"`
	Meta        map[string]string `json:"meta,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewTransactionRecord creates a pending ledger entry from a fee quote
func NewTransactionRecord(orderID, externalRef, gateway string, method PaymentMethod, quote *FeeQuote) (*TransactionRecord, error) {
	if orderID == "" {
		return nil, errors.New("order_id is required")
	}
	if externalRef == "" {
		return nil, errors.New("external_ref is required")
	}
	if quote == nil {
		return nil, errors.New("fee quote is required")
	}
	if err := quote.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &TransactionRecord{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		ExternalRef: externalRef,
		GrossAmount: quote.GrossAmount,
		FeeAmount:   quote.FeeAmount(),
		NetAmount:   quote.NetAmount,
		Status:      TransactionStatusPending,
		Gateway:     gateway,
		Method:      method,
		Tier:        quote.Tier,
		IsFallback:  quote.IsFallback,
		Meta:        make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// transitionsFrom lists which statuses may move into the given target.
// Pending fans out to every terminal state; a confirmed charge may still
// be refunded later. Everything else is final.
var transitionsFrom = map[TransactionStatus][]TransactionStatus{
	TransactionStatusConfirmed: {TransactionStatusPending},
	TransactionStatusFailed:    {TransactionStatusPending},
	TransactionStatusRefunded:  {TransactionStatusPending, TransactionStatusConfirmed},
}

// AllowedFrom returns the statuses that may transition into target
func AllowedFrom(target TransactionStatus) []TransactionStatus {
	return transitionsFrom[target]
}

// CanTransition reports whether from → to is a legal settlement transition
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range transitionsFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition except refund is possible
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed ||
		s == TransactionStatusFailed ||
		s == TransactionStatusRefunded
}
