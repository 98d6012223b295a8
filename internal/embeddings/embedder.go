package embeddings

import (
	"context"
	"fmt"

	"dealroom-supervisor/internal/common/config"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name identifies the model; it keys persisted anchor vectors.
	Name() string
}

// NewEmbedder builds the configured embedder, or nil when embeddings are
// disabled.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedding API key is required")
		}
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, OpenAIModel(cfg.Model)), nil
	case "gateway":
		return NewGatewayEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, config.GetDuration(cfg.Timeout))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
