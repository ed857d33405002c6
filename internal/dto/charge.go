package dto

import (
	"time"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/processor"
)

// CardRequest carries card data for a credit_card charge. Forwarded to the
// provider and discarded; never echoed back in any response.
type CardRequest struct {
	Number       string `json:"number" binding:"required"`
	CVV          string `json:"cvv" binding:"required"`
	HolderName   string `json:"holder_name" binding:"required"`
	ExpMonth     int    `json:"exp_month" binding:"required,min=1,max=12"`
	ExpYear      int    `json:"exp_year" binding:"required"`
	Installments int    `json:"installments" binding:"required,min=1"`
}

// CreateChargeRequest is the body of POST /api/v1/charges
type CreateChargeRequest struct {
	OrderID     string       `json:"order_id" binding:"required"`
	Method      string       `json:"payment_method" binding:"required,oneof=pix credit_card boleto"`
	ProductType string       `json:"product_type" binding:"omitempty,oneof=physical digital"`
	Card        *CardRequest `json:"card,omitempty"`
}

// ToInput converts the request into a processor charge input
func (r *CreateChargeRequest) ToInput() *processor.ChargeInput {
	input := &processor.ChargeInput{
		OrderID:     r.OrderID,
		Method:      domain.PaymentMethod(r.Method),
		ProductType: domain.ProductType(r.ProductType),
	}
	if r.Card != nil {
		input.Card = &processor.CardInput{
			Number:       r.Card.Number,
			CVV:          r.Card.CVV,
			HolderName:   r.Card.HolderName,
			ExpMonth:     r.Card.ExpMonth,
			ExpYear:      r.Card.ExpYear,
			Installments: r.Card.Installments,
		}
	}
	return input
}

// ChargeResponse is the charge outcome returned to the checkout flow
type ChargeResponse struct {
	Success     bool              `json:"success"`
	Method      string            `json:"payment_method"`
	Status      string            `json:"status"`
	ExternalRef string            `json:"external_ref,omitempty"`
	DisplayData map[string]string `json:"display_data,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// FromResult converts a payment result into the response shape
func FromResult(result *domain.PaymentResult) *ChargeResponse {
	return &ChargeResponse{
		Success:     result.Success,
		Method:      string(result.Method),
		Status:      string(result.Status),
		ExternalRef: result.ExternalRef,
		DisplayData: result.DisplayData,
		Message:     result.Message,
	}
}

// TransactionResponse is the read view of one ledger entry
type TransactionResponse struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	ExternalRef string            `json:"external_ref"`
	GrossAmount int64             `json:"gross_amount"`
	FeeAmount   int64             `json:"fee_amount"`
	NetAmount   int64             `json:"net_amount"`
	Status      string            `json:"status"`
	Gateway     string            `json:"gateway"`
	Method      string            `json:"payment_method"`
	Tier        int               `json:"tier"`
	IsFallback  bool              `json:"is_fallback"`
	Meta        map[string]string `json:"meta,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// FromTransaction converts a ledger entry into the response shape
func FromTransaction(record *domain.TransactionRecord) *TransactionResponse {
	return &TransactionResponse{
		ID:          record.ID,
		OrderID:     record.OrderID,
		ExternalRef: record.ExternalRef,
		GrossAmount: record.GrossAmount,
		FeeAmount:   record.FeeAmount,
		NetAmount:   record.NetAmount,
		Status:      string(record.Status),
		Gateway:     record.Gateway,
		Method:      string(record.Method),
		Tier:        record.Tier,
		IsFallback:  record.IsFallback,
		Meta:        record.Meta,
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   record.UpdatedAt.Format(time.RFC3339),
	}
}

// FromTransactions converts a list of ledger entries
func FromTransactions(records []*domain.TransactionRecord) []*TransactionResponse {
	responses := make([]*TransactionResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, FromTransaction(record))
	}
	return responses
}
