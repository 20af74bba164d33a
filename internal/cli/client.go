package cli

import (
	"log/slog"

	"github.com/eshaffer321/shopify-compta/internal/adapters/shopify"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
)

// NewShopifyClient creates the order API client from a validated config.
func NewShopifyClient(cfg *config.Config, logger *slog.Logger) (*shopify.Client, error) {
	timeout, err := cfg.Shopify.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return shopify.New(
		cfg.Shopify.Store,
		cfg.Shopify.APIVersion,
		cfg.Shopify.AccessToken,
		cfg.Shopify.Password,
		shopify.WithTimeout(timeout),
		shopify.WithLogger(logger),
	)
}
