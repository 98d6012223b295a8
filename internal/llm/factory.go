package llm

import (
	"context"
	"fmt"

	"dealroom-supervisor/internal/common/config"
)

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL)
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL)
	case "google":
		return NewGoogleProvider(ctx, cfg.APIKey)
	case "gateway":
		return NewGatewayProvider(cfg.BaseURL, cfg.APIKey, config.GetDuration(cfg.Timeout))
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}
}
