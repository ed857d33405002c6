package processor

import (
	"context"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/orders"
)

func (p *Processor) buildPixRequest(req *gateway.ChargeRequest) {
	req.Pix = &gateway.PixDetail{
		Expiration: p.config.PixExpiration,
	}
}

// settlePix handles the provider answer to a pix submission. The QR code
// goes onto the order for the checkout page; the order stays pending until
// the customer actually pays and the reconciler confirms it.
func (p *Processor) settlePix(ctx context.Context, order *orders.Order, resp *gateway.ChargeResponse) (*domain.PaymentResult, error) {
	if resp.Status.Settlement() == domain.TransactionStatusFailed {
		return p.declineSubmitted(ctx, order, domain.PaymentMethodPix, resp), nil
	}

	display := map[string]string{
		"qr_code":       resp.QRCode,
		"qr_code_image": resp.QRCodeImage,
		"expires_at":    resp.ExpiresAt,
	}
	p.storeOrderMeta(ctx, order.ID, display)

	return &domain.PaymentResult{
		Success:     true,
		Method:      domain.PaymentMethodPix,
		Status:      domain.TransactionStatusPending,
		ExternalRef: resp.ChargeID,
		DisplayData: display,
		Message:     "scan the QR code to complete the payment",
	}, nil
}
