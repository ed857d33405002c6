package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/dto"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/processor"
	"github.com/hngpay/splitpay/pkg/response"
)

// ChargeProcessor runs one charge attempt
type ChargeProcessor interface {
	Process(ctx context.Context, input *processor.ChargeInput) (*domain.PaymentResult, error)
}

// PaymentHandler handles charge and transaction HTTP endpoints
type PaymentHandler struct {
	processor ChargeProcessor
	ledger    ledger.Ledger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(proc ChargeProcessor, lg ledger.Ledger) *PaymentHandler {
	return &PaymentHandler{
		processor: proc,
		ledger:    lg,
	}
}

// CreateCharge handles POST /api/v1/charges
func (h *PaymentHandler) CreateCharge(c *gin.Context) {
	var req dto.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Method == string(domain.PaymentMethodCreditCard) && req.Card == nil {
		response.BadRequest(c, "card is required for credit_card charges")
		return
	}

	result, err := h.processor.Process(c.Request.Context(), req.ToInput())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			response.NotFound(c, "order not found")
		case errors.Is(err, domain.ErrInvalidFeeQuote):
			response.Error(c, 422, "INVALID_QUOTE", "charge could not be priced", "")
		default:
			response.BadRequest(c, err.Error())
		}
		return
	}

	// A declined charge is still a completed request; the outcome travels
	// in the body, not the status code.
	response.Created(c, dto.FromResult(result))
}

// GetTransaction handles GET /api/v1/transactions/:ref
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		response.BadRequest(c, "transaction reference is required")
		return
	}

	record, err := h.ledger.GetByExternalRef(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			response.NotFound(c, "transaction not found")
			return
		}
		response.InternalError(c, err)
		return
	}

	response.Success(c, dto.FromTransaction(record))
}

// ListOrderTransactions handles GET /api/v1/transactions/order/:orderId
func (h *PaymentHandler) ListOrderTransactions(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		response.BadRequest(c, "order id is required")
		return
	}

	records, err := h.ledger.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.Success(c, dto.FromTransactions(records))
}
