package domain

// PaymentResult is what a processor hands back to the checkout flow. It is
// never persisted; the ledger entry is the durable record. Message is safe
// to show to a customer, raw provider errors stay in logs.
type PaymentResult struct {
	Success bool              `json:"success"`
	Method  PaymentMethod     `json:"method"`
	Status  TransactionStatus `json:"status"`
	// ExternalRef identifies the charge at the provider, empty when
	// submission never happened
	ExternalRef string `json:"external_ref,omitempty"`
	// DisplayData carries method-specific artifacts for the checkout page:
	// pix qr code, boleto barcode and pdf url, card authorization note
	DisplayData map[string]string `json:"display_data,omitempty"`
	ErrorKind   string            `json:"error_kind,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// FailedResult builds a declined result with a generic customer message
func FailedResult(method PaymentMethod, kind error, message string) *PaymentResult {
	return &PaymentResult{
		Success:   false,
		Method:    method,
		Status:    TransactionStatusFailed,
		ErrorKind: kind.Error(),
		Message:   message,
	}
}
