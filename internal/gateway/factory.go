package gateway

import (
	"fmt"

	"github.com/hngpay/splitpay/pkg/config"
)

// NewProvider builds the configured payment provider
func NewProvider(cfg *config.ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "pagbank":
		return NewPagBankGateway(&PagBankConfig{
			Token:           cfg.Token,
			Sandbox:         cfg.Sandbox,
			ChargeTimeout:   cfg.ChargeTimeout,
			StatusTimeout:   cfg.StatusTimeout,
			NotificationURL: cfg.NotificationURL,
		}), nil
	case "mock", "":
		return NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.Name)
	}
}
