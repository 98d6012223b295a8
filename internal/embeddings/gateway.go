package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	commonhttp "dealroom-supervisor/internal/common/http"
)

// GatewayEmbedder calls the platform AI gateway (POST {base}/api/ai/embed).
type GatewayEmbedder struct {
	baseURL string
	model   string
	dims    atomic.Int64
	client  *commonhttp.Client
}

type gatewayEmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type gatewayEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewGatewayEmbedder(baseURL, apiKey, model string, timeout time.Duration) (*GatewayEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("embedding gateway base URL is required")
	}

	client := commonhttp.NewClient(timeout)
	if apiKey != "" {
		client = client.WithHeader("Authorization", "Bearer "+apiKey)
	}

	return &GatewayEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
	}, nil
}

func (e *GatewayEmbedder) Name() string {
	return "gateway/" + e.model
}

// Dimensions is learned from the first response; 0 before that.
func (e *GatewayEmbedder) Dimensions() int {
	return int(e.dims.Load())
}

func (e *GatewayEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	data, err := e.client.PostJSON(ctx, e.baseURL+"/api/ai/embed", gatewayEmbedRequest{Texts: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("gateway embedding request failed: %w", err)
	}

	var resp gatewayEmbedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode gateway embed response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gateway returned %d embeddings, expected %d", len(resp.Embeddings), len(texts))
	}
	e.dims.CompareAndSwap(0, int64(len(resp.Embeddings[0])))

	return resp.Embeddings, nil
}
