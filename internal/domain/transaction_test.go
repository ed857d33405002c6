package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRecordFromQuote(t *testing.T) {
	record, err := NewTransactionRecord("ord-1", "chr_abc", "pagbank", PaymentMethodPix, validQuote())
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "ord-1", record.OrderID)
	assert.Equal(t, "chr_abc", record.ExternalRef)
	assert.Equal(t, int64(10_000), record.GrossAmount)
	assert.Equal(t, int64(248), record.FeeAmount)
	assert.Equal(t, int64(9_752), record.NetAmount)
	assert.Equal(t, TransactionStatusPending, record.Status)
	assert.Equal(t, 2, record.Tier)
	assert.False(t, record.IsFallback)
	assert.NotNil(t, record.Meta)
}

func TestNewTransactionRecordRejectsMissingFields(t *testing.T) {
	_, err := NewTransactionRecord("", "chr_abc", "pagbank", PaymentMethodPix, validQuote())
	assert.Error(t, err)

	_, err = NewTransactionRecord("ord-1", "", "pagbank", PaymentMethodPix, validQuote())
	assert.Error(t, err)

	_, err = NewTransactionRecord("ord-1", "chr_abc", "pagbank", PaymentMethodPix, nil)
	assert.Error(t, err)
}

func TestNewTransactionRecordRejectsInvalidQuote(t *testing.T) {
	q := validQuote()
	q.NetAmount++
	_, err := NewTransactionRecord("ord-1", "chr_abc", "pagbank", PaymentMethodPix, q)
	assert.ErrorIs(t, err, ErrInvalidFeeQuote)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		ok       bool
	}{
		{TransactionStatusPending, TransactionStatusConfirmed, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusRefunded, true},
		{TransactionStatusConfirmed, TransactionStatusRefunded, true},
		{TransactionStatusConfirmed, TransactionStatusFailed, false},
		{TransactionStatusConfirmed, TransactionStatusPending, false},
		{TransactionStatusFailed, TransactionStatusConfirmed, false},
		{TransactionStatusFailed, TransactionStatusRefunded, false},
		{TransactionStatusRefunded, TransactionStatusConfirmed, false},
		{TransactionStatusRefunded, TransactionStatusRefunded, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s to %s", tc.from, tc.to)
	}
}

func TestAllowedFrom(t *testing.T) {
	assert.ElementsMatch(t,
		[]TransactionStatus{TransactionStatusPending},
		AllowedFrom(TransactionStatusConfirmed))
	assert.ElementsMatch(t,
		[]TransactionStatus{TransactionStatusPending, TransactionStatusConfirmed},
		AllowedFrom(TransactionStatusRefunded))
	assert.Empty(t, AllowedFrom(TransactionStatusPending))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.True(t, TransactionStatusConfirmed.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusRefunded.IsTerminal())
}
