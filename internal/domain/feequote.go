package domain

import "fmt"

// ProductType distinguishes fee tables on the fee authority side
type ProductType string

const (
	ProductTypePhysical ProductType = "physical"
	ProductTypeDigital  ProductType = "digital"
)

// FeeQuote is the durable record of how a single charge attempt is split
// between the platform, the gateway and the merchant. All amounts are in
// centavos. A quote is immutable once recorded; a re-attempt gets a new one.
type FeeQuote struct {
	GrossAmount int64          `json:"gross_amount"`
	ProductType ProductType    `json:"product_type"`
	Gateway     string         `json:"gateway"`
	Method      PaymentMethod  `json:"payment_method"`
	PluginFee   int64          `json:"plugin_fee"`
	GatewayFee  int64          `json:"gateway_fee"`
	NetAmount   int64          `json:"net_amount"`
	Tier        int            `json:"tier"`
	IsFallback  bool           `json:"is_fallback"`
	SplitRules  SplitRule      `json:"split_rules,omitempty"`
}

// FeeAmount returns the combined platform and gateway fee
func (q *FeeQuote) FeeAmount() int64 {
	return q.PluginFee + q.GatewayFee
}

// Validate enforces the fee invariant: the three parts must reassemble the
// gross amount exactly, and no part may be negative.
func (q *FeeQuote) Validate() error {
	if q.GrossAmount <= 0 {
		return fmt.Errorf("%w: gross amount %d must be positive", ErrInvalidFeeQuote, q.GrossAmount)
	}
	if q.PluginFee < 0 || q.GatewayFee < 0 || q.NetAmount < 0 {
		return fmt.Errorf("%w: negative component (plugin=%d gateway=%d net=%d)",
			ErrInvalidFeeQuote, q.PluginFee, q.GatewayFee, q.NetAmount)
	}
	if q.PluginFee+q.GatewayFee+q.NetAmount != q.GrossAmount {
		return fmt.Errorf("%w: plugin=%d + gateway=%d + net=%d != gross=%d",
			ErrInvalidFeeQuote, q.PluginFee, q.GatewayFee, q.NetAmount, q.GrossAmount)
	}
	if q.Tier < 1 {
		return fmt.Errorf("%w: tier %d must be >= 1", ErrInvalidFeeQuote, q.Tier)
	}
	if err := q.SplitRules.Validate(q.GrossAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeeQuote, err)
	}
	return nil
}
