package processor

import (
	"context"
	"time"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/orders"
)

func (p *Processor) buildBoletoRequest(req *gateway.ChargeRequest, order *orders.Order) {
	req.Boleto = &gateway.BoletoDetail{
		DueDate:     time.Now().AddDate(0, 0, p.config.BoletoDueDays),
		HolderName:  order.CustomerName,
		HolderTaxID: order.CustomerTaxID,
	}
}

// settleBoleto handles the provider answer to a boleto submission. The
// barcode and slip link go onto the order; settlement happens days later
// when the bank clears it, via the reconciler.
func (p *Processor) settleBoleto(ctx context.Context, order *orders.Order, resp *gateway.ChargeResponse) (*domain.PaymentResult, error) {
	if resp.Status.Settlement() == domain.TransactionStatusFailed {
		return p.declineSubmitted(ctx, order, domain.PaymentMethodBoleto, resp), nil
	}

	display := map[string]string{
		"barcode":           resp.Barcode,
		"formatted_barcode": resp.FormattedBarcode,
		"pdf_url":           resp.PDFURL,
		"due_date":          resp.DueDate,
	}
	p.storeOrderMeta(ctx, order.ID, display)

	return &domain.PaymentResult{
		Success:     true,
		Method:      domain.PaymentMethodBoleto,
		Status:      domain.TransactionStatusPending,
		ExternalRef: resp.ChargeID,
		DisplayData: display,
		Message:     "pay the boleto before the due date",
	}, nil
}
