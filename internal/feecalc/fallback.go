package feecalc

import (
	"github.com/hngpay/splitpay/internal/domain"
)

// fallbackTier is one row of the local rate table used when the fee
// authority is unreachable. Rates are basis points of the gross amount,
// UpTo is inclusive in centavos, 0 means no upper bound.
type fallbackTier struct {
	Tier       int
	UpTo       int64
	PluginBps  int64
	GatewayBps int64
}

// fallbackTiers must stay ordered by UpTo ascending with the open-ended
// tier last. Kept in sync with the authority's published emergency table.
var fallbackTiers = []fallbackTier{
	{Tier: 1, UpTo: 5_000, PluginBps: 199, GatewayBps: 119},
	{Tier: 2, UpTo: 50_000, PluginBps: 149, GatewayBps: 99},
	{Tier: 3, UpTo: 500_000, PluginBps: 119, GatewayBps: 89},
	{Tier: 4, UpTo: 0, PluginBps: 99, GatewayBps: 79},
}

// feeFromBps applies a basis-point rate with half-up rounding
func feeFromBps(gross, bps int64) int64 {
	return (gross*bps + 5_000) / 10_000
}

func tierFor(gross int64) fallbackTier {
	for _, tier := range fallbackTiers {
		if tier.UpTo == 0 || gross <= tier.UpTo {
			return tier
		}
	}
	return fallbackTiers[len(fallbackTiers)-1]
}

// fallbackQuote computes a local quote from the rate table. Net absorbs the
// rounding remainder so the three parts always reassemble the gross amount.
func fallbackQuote(gross int64, productType domain.ProductType, gateway string, method domain.PaymentMethod) *domain.FeeQuote {
	tier := tierFor(gross)

	pluginFee := feeFromBps(gross, tier.PluginBps)
	gatewayFee := feeFromBps(gross, tier.GatewayBps)

	return &domain.FeeQuote{
		GrossAmount: gross,
		ProductType: productType,
		Gateway:     gateway,
		Method:      method,
		PluginFee:   pluginFee,
		GatewayFee:  gatewayFee,
		NetAmount:   gross - pluginFee - gatewayFee,
		Tier:        tier.Tier,
		IsFallback:  true,
	}
}
