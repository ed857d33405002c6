package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hngpay/splitpay/internal/domain"
)

func pendingRecord(t *testing.T, orderID, externalRef string) *domain.TransactionRecord {
	t.Helper()
	quote := &domain.FeeQuote{
		GrossAmount: 10_000,
		Gateway:     "pagbank",
		Method:      domain.PaymentMethodPix,
		PluginFee:   149,
		GatewayFee:  99,
		NetAmount:   9_752,
		Tier:        2,
	}
	record, err := domain.NewTransactionRecord(orderID, externalRef, "pagbank", domain.PaymentMethodPix, quote)
	require.NoError(t, err)
	return record
}

func TestRecordRejectsDuplicateRef(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, pendingRecord(t, "ord-1", "CHAR_1"))
	require.NoError(t, err)

	_, err = l.Record(ctx, pendingRecord(t, "ord-1", "CHAR_1"))
	assert.ErrorIs(t, err, domain.ErrTransactionExists)
}

func TestUpdateStatusTransitions(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, pendingRecord(t, "ord-1", "CHAR_1"))
	require.NoError(t, err)

	changed, err := l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, changed)

	// duplicate delivery collapses to a no-op
	changed, err = l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusConfirmed)
	require.NoError(t, err)
	assert.False(t, changed)

	// confirmed may still be refunded
	changed, err = l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusRefunded)
	require.NoError(t, err)
	assert.True(t, changed)

	// but never resurrected
	_, err = l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestUpdateStatusUnknownRef(t *testing.T) {
	l := NewMemoryLedger()

	_, err := l.UpdateStatus(context.Background(), "CHAR_missing", domain.TransactionStatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestUpdateStatusFailedIsFinal(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, pendingRecord(t, "ord-1", "CHAR_1"))
	require.NoError(t, err)

	_, err = l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusFailed)
	require.NoError(t, err)

	_, err = l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusRefunded)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestConcurrentUpdatesExactlyOneWinner(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, pendingRecord(t, "ord-1", "CHAR_1"))
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := l.UpdateStatus(ctx, "CHAR_1", domain.TransactionStatusConfirmed)
			if err == nil && changed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)

	record, err := l.GetByExternalRef(ctx, "CHAR_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusConfirmed, record.Status)
}

func TestGetByOrderIDNewestFirst(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	first := pendingRecord(t, "ord-1", "CHAR_1")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err := l.Record(ctx, first)
	require.NoError(t, err)

	second := pendingRecord(t, "ord-1", "CHAR_2")
	_, err = l.Record(ctx, second)
	require.NoError(t, err)

	records, err := l.GetByOrderID(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CHAR_2", records[0].ExternalRef)
	assert.Equal(t, "CHAR_1", records[1].ExternalRef)
}

func TestListPendingOlderThan(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	stale := pendingRecord(t, "ord-1", "CHAR_stale")
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	_, err := l.Record(ctx, stale)
	require.NoError(t, err)

	fresh := pendingRecord(t, "ord-2", "CHAR_fresh")
	_, err = l.Record(ctx, fresh)
	require.NoError(t, err)

	settled := pendingRecord(t, "ord-3", "CHAR_settled")
	settled.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	_, err = l.Record(ctx, settled)
	require.NoError(t, err)
	_, err = l.UpdateStatus(ctx, "CHAR_settled", domain.TransactionStatusConfirmed)
	require.NoError(t, err)

	records, err := l.ListPendingOlderThan(ctx, time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CHAR_stale", records[0].ExternalRef)
}

func TestLedgerEntriesAreImmutableCopies(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	record := pendingRecord(t, "ord-1", "CHAR_1")
	record.Meta["qr_code"] = "00020126"
	_, err := l.Record(ctx, record)
	require.NoError(t, err)

	fetched, err := l.GetByExternalRef(ctx, "CHAR_1")
	require.NoError(t, err)
	fetched.GrossAmount = 1
	fetched.Meta["qr_code"] = "tampered"

	again, err := l.GetByExternalRef(ctx, "CHAR_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), again.GrossAmount)
	assert.Equal(t, "00020126", again.Meta["qr_code"])
}
