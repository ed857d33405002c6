package domain

import (
	"fmt"
	"strings"
)

// Reference prefixes accepted on inbound notifications. New charges always
// carry the ORDER_ prefix; CHARGE_ is parsed for compatibility with
// references issued by the previous integration.
const (
	referencePrefix       = "ORDER_"
	legacyReferencePrefix = "CHARGE_"
)

// ChargeReference deterministically embeds the internal order id into the
// reference sent to the payment provider, so webhook payloads can be
// resolved back to an order without a lookup table.
type ChargeReference struct {
	OrderID string
}

// NewChargeReference builds a reference for a fresh charge
func NewChargeReference(orderID string) (ChargeReference, error) {
	if orderID == "" {
		return ChargeReference{}, fmt.Errorf("%w: empty order id", ErrMalformedReference)
	}
	return ChargeReference{OrderID: orderID}, nil
}

// String renders the wire format
func (r ChargeReference) String() string {
	return referencePrefix + r.OrderID
}

// ParseChargeReference decodes a provider-side reference back into an order id.
// Anything that does not carry a known prefix with a non-empty id is rejected
// with ErrMalformedReference.
func ParseChargeReference(raw string) (ChargeReference, error) {
	for _, prefix := range []string{referencePrefix, legacyReferencePrefix} {
		if strings.HasPrefix(raw, prefix) {
			id := raw[len(prefix):]
			if id == "" {
				return ChargeReference{}, fmt.Errorf("%w: %q has empty order id", ErrMalformedReference, raw)
			}
			return ChargeReference{OrderID: id}, nil
		}
	}
	return ChargeReference{}, fmt.Errorf("%w: %q", ErrMalformedReference, raw)
}
