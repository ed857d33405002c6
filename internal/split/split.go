// Package split decides which split instruction, if any, accompanies a
// charge. Builders never invent recipients: the fee authority is the only
// source of split rules, this package just shapes and checks them.
package split

import (
	"context"
	"fmt"

	"github.com/hngpay/splitpay/internal/domain"
)

// RuleBuilder produces the split instruction for a charge attempt
type RuleBuilder interface {
	// Build returns the rule to attach to the provider payload. An empty
	// rule means the charge carries no split instruction at all.
	Build(ctx context.Context, quote *domain.FeeQuote) (domain.SplitRule, error)
}

// PassthroughBuilder forwards the authority-supplied rules verbatim after
// checking them against the gross amount.
type PassthroughBuilder struct{}

// NewPassthroughBuilder creates the default production builder
func NewPassthroughBuilder() *PassthroughBuilder {
	return &PassthroughBuilder{}
}

// Build validates and returns the quote's split rules
func (b *PassthroughBuilder) Build(ctx context.Context, quote *domain.FeeQuote) (domain.SplitRule, error) {
	if quote.SplitRules.IsEmpty() {
		return nil, nil
	}
	if err := quote.SplitRules.Validate(quote.GrossAmount); err != nil {
		return nil, fmt.Errorf("refusing split instruction: %w", err)
	}
	return quote.SplitRules, nil
}

// NoopBuilder never emits a split instruction, used when the platform runs
// without marketplace sellers.
type NoopBuilder struct{}

// NewNoopBuilder creates a builder that always returns an empty rule
func NewNoopBuilder() *NoopBuilder {
	return &NoopBuilder{}
}

// Build returns an empty rule regardless of the quote
func (b *NoopBuilder) Build(ctx context.Context, quote *domain.FeeQuote) (domain.SplitRule, error) {
	return nil, nil
}
