package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine. Handlers translate these into
// user-safe messages; raw provider payloads never leave the service boundary.
var (
	// ErrNotConfigured means the provider credential is missing. Fatal,
	// surfaced to the operator, never to the paying customer.
	ErrNotConfigured = errors.New("payment provider is not configured")

	// ErrNetwork is a transient transport failure talking to an external service
	ErrNetwork = errors.New("network error")

	// ErrGatewayUnavailable fails a single charge attempt while leaving the
	// order untouched so another payment method can be tried
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidFeeQuote means a quote violated the fee invariant. This
	// indicates a bug or tampering and must block the charge.
	ErrInvalidFeeQuote = errors.New("invalid fee quote")

	// ErrMalformedReference means an external reference could not be parsed
	ErrMalformedReference = errors.New("malformed charge reference")

	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrTransactionExists       = errors.New("transaction already recorded")
	ErrInvalidStatusTransition = errors.New("invalid transaction status transition")

	// ErrOrderSyncFailed means the ledger was updated but the order status
	// update failed afterwards. The discrepancy needs manual reconciliation.
	ErrOrderSyncFailed = errors.New("ledger updated but order status update failed")

	ErrOrderNotFound = errors.New("order not found")
)

// ProviderError carries the provider's raw rejection payload for diagnostics.
// It wraps nothing user-facing: callers show a generic decline message.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected request (status %d): %s", e.StatusCode, e.Body)
}

// Is lets errors.Is match any ProviderError against ErrProviderRejected
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRejected
}

// ErrProviderRejected is the sentinel for HTTP >=400 responses from the provider
var ErrProviderRejected = errors.New("provider rejected request")
