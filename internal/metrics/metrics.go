package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hngpay/splitpay/pkg/telemetry"
)

var (
	// Charge counters
	ChargesSubmitted *telemetry.Counter
	ChargesConfirmed *telemetry.Counter
	ChargesDeclined  *telemetry.Counter
	ChargesRefunded  *telemetry.Counter

	// Fee calculation counters
	FallbackQuotes *telemetry.Counter
	InvalidQuotes  *telemetry.Counter

	// Webhook counters
	WebhooksReceived  *telemetry.Counter
	WebhooksDuplicate *telemetry.Counter
	OrderSyncFailures *telemetry.Counter

	// Histograms
	ChargeDuration *telemetry.Histogram
	ChargeAmount   *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all engine metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	ChargesSubmitted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_charges_submitted_total",
		Description: "Total number of charges submitted to the provider",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ChargesConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_charges_confirmed_total",
		Description: "Total number of charges confirmed by reconciliation",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ChargesDeclined, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_charges_declined_total",
		Description: "Total number of charges declined or canceled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ChargesRefunded, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_charges_refunded_total",
		Description: "Total number of charges refunded",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	FallbackQuotes, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_fee_fallback_quotes_total",
		Description: "Total number of fee quotes computed from the local fallback table",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	InvalidQuotes, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_fee_invalid_quotes_total",
		Description: "Total number of authority quotes rejected by the fee invariant",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WebhooksReceived, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_webhooks_received_total",
		Description: "Total number of provider notifications received",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	WebhooksDuplicate, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_webhooks_duplicate_total",
		Description: "Total number of notifications skipped as duplicate deliveries",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	OrderSyncFailures, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "splitpay_order_sync_failures_total",
		Description: "Total number of ledger transitions whose order update failed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ChargeDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "splitpay_charge_submission_seconds",
		Description: "Duration of provider charge submissions",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	ChargeAmount, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "splitpay_charge_amount_centavos",
		Description: "Gross charge amount distribution",
		Unit:        "BRL",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordChargeSubmitted records a charge submission
func RecordChargeSubmitted(ctx context.Context, method, gateway string, amount int64, durationSeconds float64) {
	if ChargesSubmitted != nil {
		ChargesSubmitted.Inc(ctx,
			attribute.String("method", method),
			attribute.String("gateway", gateway),
		)
	}
	if ChargeAmount != nil {
		ChargeAmount.Record(ctx, float64(amount))
	}
	if ChargeDuration != nil {
		ChargeDuration.Record(ctx, durationSeconds,
			attribute.String("method", method),
		)
	}
}

// RecordSettlement records a reconciled terminal transition
func RecordSettlement(ctx context.Context, status string) {
	switch status {
	case "confirmed":
		if ChargesConfirmed != nil {
			ChargesConfirmed.Inc(ctx)
		}
	case "failed":
		if ChargesDeclined != nil {
			ChargesDeclined.Inc(ctx)
		}
	case "refunded":
		if ChargesRefunded != nil {
			ChargesRefunded.Inc(ctx)
		}
	}
}

// RecordFallbackQuote records a locally computed fee quote
func RecordFallbackQuote(ctx context.Context, gateway string) {
	if FallbackQuotes != nil {
		FallbackQuotes.Inc(ctx, attribute.String("gateway", gateway))
	}
}

// RecordInvalidQuote records an authority quote rejected by validation
func RecordInvalidQuote(ctx context.Context, gateway string) {
	if InvalidQuotes != nil {
		InvalidQuotes.Inc(ctx, attribute.String("gateway", gateway))
	}
}

// RecordWebhookReceived records an inbound provider notification
func RecordWebhookReceived(ctx context.Context, duplicate bool) {
	if WebhooksReceived != nil {
		WebhooksReceived.Inc(ctx)
	}
	if duplicate && WebhooksDuplicate != nil {
		WebhooksDuplicate.Inc(ctx)
	}
}

// RecordOrderSyncFailure records a ledger/order divergence
func RecordOrderSyncFailure(ctx context.Context) {
	if OrderSyncFailures != nil {
		OrderSyncFailures.Inc(ctx)
	}
}
