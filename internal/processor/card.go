package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/orders"
)

func (p *Processor) buildCardRequest(req *gateway.ChargeRequest, card *CardInput) {
	req.Card = &gateway.CardDetail{
		Number:       card.Number,
		CVV:          card.CVV,
		HolderName:   card.HolderName,
		ExpMonth:     card.ExpMonth,
		ExpYear:      card.ExpYear,
		Installments: card.Installments,
	}
}

// settleCard handles the synchronous card answer. PAID moves the order to
// processing right away. AUTHORIZED is accepted as a successful submission
// but the order stays pending with a note: capture confirmation arrives
// later through the reconciler, and counting an authorization as settled
// money would overstate revenue.
func (p *Processor) settleCard(ctx context.Context, order *orders.Order, resp *gateway.ChargeResponse) (*domain.PaymentResult, error) {
	switch resp.Status {
	case gateway.StatusPaid:
		note := fmt.Sprintf("card charge %s paid", resp.ChargeID)
		if err := p.orders.UpdateStatus(ctx, order.ID, orders.StatusProcessing, note); err != nil {
			p.logger.Error("failed to move order to processing after card payment",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
		return &domain.PaymentResult{
			Success:     true,
			Method:      domain.PaymentMethodCreditCard,
			Status:      domain.TransactionStatusPending,
			ExternalRef: resp.ChargeID,
			Message:     "payment approved",
		}, nil

	case gateway.StatusAuthorized:
		note := fmt.Sprintf("card charge %s authorized, awaiting capture", resp.ChargeID)
		if err := p.orders.AddNote(ctx, order.ID, note); err != nil {
			p.logger.Warn("failed to note authorization on order",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
		return &domain.PaymentResult{
			Success:     true,
			Method:      domain.PaymentMethodCreditCard,
			Status:      domain.TransactionStatusPending,
			ExternalRef: resp.ChargeID,
			DisplayData: map[string]string{"authorization": "pending_capture"},
			Message:     "payment authorized, confirmation pending",
		}, nil

	case gateway.StatusDeclined, gateway.StatusCanceled:
		// order stays pending so another card can be tried
		return p.declineSubmitted(ctx, order, domain.PaymentMethodCreditCard, resp), nil

	default:
		// WAITING / IN_ANALYSIS: anti-fraud review. Not a decline: the
		// ledger entry stays pending so the provider's verdict can still
		// settle it through the reconciler.
		return &domain.PaymentResult{
			Success:     true,
			Method:      domain.PaymentMethodCreditCard,
			Status:      domain.TransactionStatusPending,
			ExternalRef: resp.ChargeID,
			Message:     "payment is under review",
		}, nil
	}
}
