package domain

import "fmt"

// SplitRecipient is one beneficiary of a split charge. The account id comes
// from the fee authority; this service never invents recipient identifiers.
type SplitRecipient struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

// SplitRule is an ordered list of recipients whose amounts must total the
// gross charge. An empty rule is valid and means a single-beneficiary charge
// with no split instruction sent to the provider.
type SplitRule []SplitRecipient

// IsEmpty reports whether no split instruction should be attached
func (r SplitRule) IsEmpty() bool {
	return len(r) == 0
}

// Total returns the sum of all recipient amounts
func (r SplitRule) Total() int64 {
	var total int64
	for _, recipient := range r {
		total += recipient.Amount
	}
	return total
}

// Validate checks that a non-empty rule is well formed and totals gross
func (r SplitRule) Validate(gross int64) error {
	if r.IsEmpty() {
		return nil
	}
	for i, recipient := range r {
		if recipient.AccountID == "" {
			return fmt.Errorf("split recipient %d has empty account id", i)
		}
		if recipient.Amount <= 0 {
			return fmt.Errorf("split recipient %s has non-positive amount %d", recipient.AccountID, recipient.Amount)
		}
	}
	if total := r.Total(); total != gross {
		return fmt.Errorf("split total %d does not equal gross %d", total, gross)
	}
	return nil
}
