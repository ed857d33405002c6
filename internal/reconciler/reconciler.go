package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/metrics"
	"github.com/hngpay/splitpay/internal/orders"
	"github.com/hngpay/splitpay/pkg/kafka"
	"github.com/hngpay/splitpay/pkg/logger"
	"github.com/hngpay/splitpay/pkg/redis"
)

// Cache is the slice of the redis client the reconciler needs for delivery
// deduplication
type Cache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// dedupeTTL bounds how long a processed notification key lives in the cache
const dedupeTTL = 24 * time.Hour

// Notification is the parsed inbound provider webhook. ReportedStatus is
// kept for logging only; the reconciler never acts on it.
type Notification struct {
	ChargeID       string
	ReportedStatus string
}

// SettlementEvent is published after a ledger entry reaches a terminal state
type SettlementEvent struct {
	ExternalRef string    `json:"external_ref"`
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	GrossAmount int64     `json:"gross_amount"`
	FeeAmount   int64     `json:"fee_amount"`
	NetAmount   int64     `json:"net_amount"`
	Gateway     string    `json:"gateway"`
	Method      string    `json:"payment_method"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Reconciler turns provider notifications into ledger and order state. The
// webhook body is only a doorbell: every transition is driven by an
// authoritative re-fetch from the provider, and the ledger compare-and-set
// makes duplicate or concurrent deliveries collapse to a single transition.
type Reconciler struct {
	provider gateway.Provider
	ledger   ledger.Ledger
	orders   orders.Store
	cache    Cache
	producer *kafka.Producer
	topic    string
	logger   *logger.Logger
}

// New creates a reconciler. cache and producer may be nil; deduplication and
// settlement events are then skipped, correctness is unaffected.
func New(provider gateway.Provider, lg ledger.Ledger, store orders.Store, cache *redis.Client, producer *kafka.Producer, topic string) *Reconciler {
	r := &Reconciler{
		provider: provider,
		ledger:   lg,
		orders:   store,
		producer: producer,
		topic:    topic,
		logger:   logger.Get().With(zap.String("component", "reconciler")),
	}
	if cache != nil {
		r.cache = cache
	}
	return r
}

// HandleNotification processes one webhook delivery. A nil return means the
// delivery is fully absorbed; a non-nil return is for the caller's logs
// only, the webhook endpoint acknowledges regardless.
func (r *Reconciler) HandleNotification(ctx context.Context, n *Notification) error {
	if n == nil || n.ChargeID == "" {
		metrics.RecordWebhookReceived(ctx, false)
		r.logger.Warn("notification without charge id, ignoring")
		return nil
	}

	duplicate := r.markSeen(ctx, n)
	metrics.RecordWebhookReceived(ctx, duplicate)
	if duplicate {
		r.logger.Debug("duplicate notification delivery",
			zap.String("charge_id", n.ChargeID),
			zap.String("reported_status", n.ReportedStatus),
		)
		return nil
	}

	r.logger.Info("notification received",
		zap.String("charge_id", n.ChargeID),
		zap.String("reported_status", n.ReportedStatus),
	)

	if err := r.ReconcileCharge(ctx, n.ChargeID); err != nil {
		// Release the dedupe claim so the provider's redelivery of this
		// exact notification is processed instead of swallowed.
		r.clearSeen(ctx, n)
		return err
	}
	return nil
}

func dedupeKey(n *Notification) string {
	return fmt.Sprintf("splitpay:webhook:%s:%s", n.ChargeID, n.ReportedStatus)
}

// markSeen claims the delivery in the cache. Best effort: a cache failure
// just means the charge is re-fetched again, the ledger CAS still guards
// the actual transition.
func (r *Reconciler) markSeen(ctx context.Context, n *Notification) bool {
	if r.cache == nil {
		return false
	}

	claimed, err := r.cache.SetNX(ctx, dedupeKey(n), 1, dedupeTTL).Result()
	if err != nil {
		r.logger.Warn("webhook dedupe cache unavailable",
			zap.String("charge_id", n.ChargeID),
			zap.Error(err),
		)
		return false
	}
	return !claimed
}

// clearSeen drops a claim made by markSeen. Best effort: if the delete fails
// the key still expires, and the pending sweep covers the gap.
func (r *Reconciler) clearSeen(ctx context.Context, n *Notification) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, dedupeKey(n)).Err(); err != nil {
		r.logger.Warn("failed to release webhook dedupe claim",
			zap.String("charge_id", n.ChargeID),
			zap.Error(err),
		)
	}
}

// ReconcileCharge re-fetches the charge from the provider and applies the
// resulting transition. Shared between webhook handling and the pending
// sweep.
func (r *Reconciler) ReconcileCharge(ctx context.Context, chargeID string) error {
	info, err := r.provider.GetCharge(ctx, chargeID)
	if err != nil {
		// No state changes on a failed re-fetch. The charge stays
		// pending and a later delivery or sweep picks it up.
		r.logger.Warn("charge re-fetch failed, no state change",
			zap.String("charge_id", chargeID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to re-fetch charge %s: %w", chargeID, err)
	}

	target := info.Status.Settlement()
	if target == domain.TransactionStatusPending {
		r.logger.Debug("charge still pending at provider",
			zap.String("charge_id", chargeID),
			zap.String("provider_status", string(info.Status)),
		)
		return nil
	}

	changed, err := r.ledger.UpdateStatus(ctx, chargeID, target)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			r.logger.Warn("notification for unknown charge",
				zap.String("charge_id", chargeID),
			)
			return nil
		case errors.Is(err, domain.ErrInvalidStatusTransition):
			r.logger.Warn("stale notification, transition not allowed",
				zap.String("charge_id", chargeID),
				zap.String("target", string(target)),
				zap.Error(err),
			)
			return nil
		default:
			return fmt.Errorf("failed to transition charge %s: %w", chargeID, err)
		}
	}
	if !changed {
		// already settled by an earlier delivery
		return nil
	}

	metrics.RecordSettlement(ctx, string(target))
	r.logger.Info("charge settled",
		zap.String("charge_id", chargeID),
		zap.String("status", string(target)),
	)

	record, err := r.ledger.GetByExternalRef(ctx, chargeID)
	if err != nil {
		return fmt.Errorf("failed to load settled charge %s: %w", chargeID, err)
	}

	if err := r.syncOrder(ctx, record, info, target); err != nil {
		return err
	}

	r.publishSettlement(ctx, record, target)
	return nil
}

// syncOrder reflects the ledger transition on the order. The ledger is
// already correct at this point; a failure here is the divergence the
// ErrOrderSyncFailed alarm exists for.
func (r *Reconciler) syncOrder(ctx context.Context, record *domain.TransactionRecord, info *gateway.ChargeInfo, target domain.TransactionStatus) error {
	orderID := record.OrderID
	if orderID == "" && info.ReferenceID != "" {
		ref, err := domain.ParseChargeReference(info.ReferenceID)
		if err != nil {
			r.logger.Warn("charge carries malformed reference",
				zap.String("charge_id", record.ExternalRef),
				zap.String("reference_id", info.ReferenceID),
				zap.Error(err),
			)
			return nil
		}
		orderID = ref.OrderID
	}

	var status orders.Status
	var note string
	switch target {
	case domain.TransactionStatusConfirmed:
		status = orders.StatusProcessing
		note = fmt.Sprintf("payment confirmed, charge %s", record.ExternalRef)
	case domain.TransactionStatusFailed:
		status = orders.StatusFailed
		note = fmt.Sprintf("payment declined, charge %s", record.ExternalRef)
	case domain.TransactionStatusRefunded:
		status = orders.StatusRefunded
		note = fmt.Sprintf("payment refunded, charge %s", record.ExternalRef)
	default:
		return nil
	}

	if err := r.orders.UpdateStatus(ctx, orderID, status, note); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// The order lives outside this process (the sweep worker runs
			// against a stand-in store). The settlement event still carries
			// the outcome; only a failed update on a known order is a
			// divergence worth alarming on.
			r.logger.Warn("order not known here, skipping order sync",
				zap.String("order_id", orderID),
				zap.String("charge_id", record.ExternalRef),
			)
			return nil
		}
		metrics.RecordOrderSyncFailure(ctx)
		r.logger.Error("ledger settled but order update failed",
			zap.String("order_id", orderID),
			zap.String("charge_id", record.ExternalRef),
			zap.String("ledger_status", string(target)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: order %s after charge %s: %v",
			domain.ErrOrderSyncFailed, orderID, record.ExternalRef, err)
	}
	return nil
}

// publishSettlement emits the settlement event for downstream consumers.
// Nil-safe and best effort.
func (r *Reconciler) publishSettlement(ctx context.Context, record *domain.TransactionRecord, target domain.TransactionStatus) {
	if r.producer == nil || r.topic == "" {
		return
	}

	event := &SettlementEvent{
		ExternalRef: record.ExternalRef,
		OrderID:     record.OrderID,
		Status:      string(target),
		GrossAmount: record.GrossAmount,
		FeeAmount:   record.FeeAmount,
		NetAmount:   record.NetAmount,
		Gateway:     record.Gateway,
		Method:      string(record.Method),
		OccurredAt:  time.Now().UTC(),
	}

	if err := r.producer.ProduceJSON(ctx, r.topic, record.OrderID, event, map[string]string{
		"event_type": "charge." + string(target),
	}); err != nil {
		r.logger.Warn("failed to publish settlement event",
			zap.String("external_ref", record.ExternalRef),
			zap.Error(err),
		)
	}
}

// SweepPending re-checks pending ledger entries whose webhook may have been
// lost. Returns how many entries were examined.
func (r *Reconciler) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	records, err := r.ledger.ListPendingOlderThan(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending charges: %w", err)
	}

	for _, record := range records {
		if err := r.ReconcileCharge(ctx, record.ExternalRef); err != nil {
			r.logger.Warn("sweep reconciliation failed",
				zap.String("charge_id", record.ExternalRef),
				zap.Error(err),
			)
		}
	}
	return len(records), nil
}
