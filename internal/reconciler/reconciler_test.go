package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hngpay/splitpay/internal/domain"
	"github.com/hngpay/splitpay/internal/gateway"
	"github.com/hngpay/splitpay/internal/ledger"
	"github.com/hngpay/splitpay/internal/orders"
)

// fakeCache implements Cache on a plain map
type fakeCache struct {
	keys map[string]struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: make(map[string]struct{})}
}

func (f *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd {
	if _, ok := f.keys[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.keys[key] = struct{}{}
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.keys[key]; ok {
			delete(f.keys, key)
			removed++
		}
	}
	return goredis.NewIntResult(removed, nil)
}

// failingStore rejects every status update, simulating an order subsystem
// outage
type failingStore struct {
	orders.Store
	err error
}

func (s *failingStore) UpdateStatus(ctx context.Context, id string, status orders.Status, note string) error {
	return s.err
}

type testEnv struct {
	reconciler *Reconciler
	provider   *gateway.MockProvider
	ledger     *ledger.MemoryLedger
	orders     *orders.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := gateway.NewMockProvider(nil)
	memLedger := ledger.NewMemoryLedger()
	store := orders.NewMemoryStore()
	store.Put(&orders.Order{
		ID:     "ord-1",
		Total:  10_000,
		Status: orders.StatusPending,
	})

	return &testEnv{
		reconciler: New(provider, memLedger, store, nil, nil, ""),
		provider:   provider,
		ledger:     memLedger,
		orders:     store,
	}
}

// submitCharge registers a pix charge at the mock provider and in the ledger
func (env *testEnv) submitCharge(t *testing.T, orderID string) string {
	t.Helper()

	resp, err := env.provider.CreateCharge(context.Background(), &gateway.ChargeRequest{
		ReferenceID: "ORDER_" + orderID,
		Amount:      10_000,
		Currency:    "BRL",
		Method:      domain.PaymentMethodPix,
		Pix:         &gateway.PixDetail{Expiration: 30 * time.Minute},
	})
	require.NoError(t, err)

	quote := &domain.FeeQuote{
		GrossAmount: 10_000,
		Gateway:     "mock",
		Method:      domain.PaymentMethodPix,
		PluginFee:   149,
		GatewayFee:  99,
		NetAmount:   9_752,
		Tier:        2,
	}
	record, err := domain.NewTransactionRecord(orderID, resp.ChargeID, "mock", domain.PaymentMethodPix, quote)
	require.NoError(t, err)
	_, err = env.ledger.Record(context.Background(), record)
	require.NoError(t, err)

	return resp.ChargeID
}

func TestNotificationConfirmsCharge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))

	err := env.reconciler.HandleNotification(ctx, &Notification{
		ChargeID:       chargeID,
		ReportedStatus: "PAID",
	})
	require.NoError(t, err)

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)

	order, err := env.orders.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, order.Status)

	notes := env.orders.Notes("ord-1")
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], chargeID)
}

func TestDoubleDeliveryTransitionsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))

	n := &Notification{ChargeID: chargeID, ReportedStatus: "PAID"}
	require.NoError(t, env.reconciler.HandleNotification(ctx, n))
	require.NoError(t, env.reconciler.HandleNotification(ctx, n))

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)

	// exactly one order update happened
	assert.Len(t, env.orders.Notes("ord-1"), 1)
}

func TestReportedStatusIsNeverTrusted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// provider still shows WAITING, webhook claims PAID
	chargeID := env.submitCharge(t, "ord-1")

	err := env.reconciler.HandleNotification(ctx, &Notification{
		ChargeID:       chargeID,
		ReportedStatus: "PAID",
	})
	require.NoError(t, err)

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, record.Status)

	order, err := env.orders.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, order.Status)
}

func TestRefetchFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))
	env.provider.SetGetErr(domain.ErrNetwork)

	err := env.reconciler.HandleNotification(ctx, &Notification{ChargeID: chargeID})
	assert.ErrorIs(t, err, domain.ErrNetwork)

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, record.Status)
}

func TestRefetchFailureReleasesDedupeClaim(t *testing.T) {
	env := newTestEnv(t)
	env.reconciler.cache = newFakeCache()
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))
	env.provider.SetGetErr(domain.ErrNetwork)

	n := &Notification{ChargeID: chargeID, ReportedStatus: "PAID"}
	assert.ErrorIs(t, env.reconciler.HandleNotification(ctx, n), domain.ErrNetwork)

	// the provider redelivers after the outage; the claim from the failed
	// attempt must not swallow it
	env.provider.SetGetErr(nil)
	require.NoError(t, env.reconciler.HandleNotification(ctx, n))

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)

	// the successful claim sticks: a third delivery is a duplicate
	require.NoError(t, env.reconciler.HandleNotification(ctx, n))
	assert.Len(t, env.orders.Notes("ord-1"), 1)
}

func TestNotificationWithoutChargeID(t *testing.T) {
	env := newTestEnv(t)

	assert.NoError(t, env.reconciler.HandleNotification(context.Background(), &Notification{}))
	assert.NoError(t, env.reconciler.HandleNotification(context.Background(), nil))
}

func TestNotificationForUnknownCharge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// the provider knows the charge but the ledger never recorded it
	resp, err := env.provider.CreateCharge(ctx, &gateway.ChargeRequest{
		ReferenceID: "ORDER_ord-ghost",
		Amount:      5_000,
		Method:      domain.PaymentMethodPix,
		Pix:         &gateway.PixDetail{Expiration: time.Minute},
	})
	require.NoError(t, err)
	require.NoError(t, env.provider.SetChargeStatus(resp.ChargeID, gateway.StatusPaid))

	assert.NoError(t, env.reconciler.HandleNotification(ctx, &Notification{ChargeID: resp.ChargeID}))
}

func TestRefundAfterConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))
	require.NoError(t, env.reconciler.HandleNotification(ctx, &Notification{ChargeID: chargeID}))

	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusRefunded))
	require.NoError(t, env.reconciler.HandleNotification(ctx, &Notification{ChargeID: chargeID}))

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusRefunded, record.Status)

	order, err := env.orders.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusRefunded, order.Status)
}

func TestDeclineSyncsOrderToFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusDeclined))
	require.NoError(t, env.reconciler.HandleNotification(ctx, &Notification{ChargeID: chargeID}))

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, record.Status)

	order, err := env.orders.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, order.Status)
}

func TestOrderSyncFailureIsReported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))

	// the order exists but its update fails
	env.reconciler.orders = &failingStore{Store: env.orders, err: errors.New("order service unavailable")}

	err := env.reconciler.HandleNotification(ctx, &Notification{ChargeID: chargeID})
	assert.ErrorIs(t, err, domain.ErrOrderSyncFailed)

	// the ledger transition stands even though the order is out of sync
	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)
}

func TestSettlementWithoutLocalOrderIsNotAFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// the sweep worker's store never holds the order
	chargeID := env.submitCharge(t, "ord-elsewhere")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))

	require.NoError(t, env.reconciler.ReconcileCharge(ctx, chargeID))

	record, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)
}

func TestSweepPendingSettlesLostWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chargeID := env.submitCharge(t, "ord-1")
	require.NoError(t, env.provider.SetChargeStatus(chargeID, gateway.StatusPaid))

	swept, err := env.reconciler.SweepPending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	settled, err := env.ledger.GetByExternalRef(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, settled.Status)
}
