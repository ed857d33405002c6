package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeReferenceRoundTrip(t *testing.T) {
	ref, err := NewChargeReference("ord-123")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_ord-123", ref.String())

	parsed, err := ParseChargeReference(ref.String())
	require.NoError(t, err)
	assert.Equal(t, "ord-123", parsed.OrderID)
}

func TestParseLegacyPrefix(t *testing.T) {
	parsed, err := ParseChargeReference("CHARGE_ord-legacy")
	require.NoError(t, err)
	assert.Equal(t, "ord-legacy", parsed.OrderID)

	// legacy prefix is parsed but never emitted
	assert.Equal(t, "ORDER_ord-legacy", parsed.String())
}

func TestParseRejectsMalformedReferences(t *testing.T) {
	for _, raw := range []string{"", "ord-123", "ORDER_", "CHARGE_", "PAYMENT_ord-1", "order_ord-1"} {
		_, err := ParseChargeReference(raw)
		assert.ErrorIs(t, err, ErrMalformedReference, "raw %q", raw)
	}
}

func TestNewChargeReferenceRequiresOrderID(t *testing.T) {
	_, err := NewChargeReference("")
	assert.ErrorIs(t, err, ErrMalformedReference)
}
