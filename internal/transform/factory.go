package transform

import (
	"fmt"

	"DrawingTransformer/internal/config"
)

// New builds the service selected by cfg, wrapped with retries.
func New(cfg config.ServiceConfig) (Service, error) {
	var svc Service
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		svc = NewHTTPClient(cfg.BaseURL, cfg.Timeout)
	case config.ProviderOpenAI:
		c := NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
		if cfg.VisionModel != "" {
			c.VisionModel = cfg.VisionModel
		}
		if cfg.ImageModel != "" {
			c.ImageModel = cfg.ImageModel
		}
		svc = c
	case config.ProviderAzure:
		c := NewAzureClient(cfg.BaseURL, cfg.APIKey, cfg.APIVersion, cfg.Timeout)
		c.VisionModel = cfg.VisionModel
		c.ImageModel = cfg.ImageModel
		svc = c
	default:
		return nil, fmt.Errorf("unknown transformation provider %q", cfg.Provider)
	}
	return WithRetry(svc, cfg.MaxRetries), nil
}
