package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "dealroom-supervisor/internal/common/http"
)

// GatewayProvider calls the platform AI gateway (POST {base}/api/ai/generate).
type GatewayProvider struct {
	baseURL string
	client  *commonhttp.Client
}

type gatewayRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty"`
}

type gatewayResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func NewGatewayProvider(baseURL, apiKey string, timeout time.Duration) (*GatewayProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}

	client := commonhttp.NewClient(timeout)
	if apiKey != "" {
		client = client.WithHeader("Authorization", "Bearer "+apiKey)
	}

	return &GatewayProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

func (p *GatewayProvider) Name() string {
	return "gateway"
}

// Complete flattens the conversation into one prompt; the gateway is single-turn.
func (p *GatewayProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var prompt strings.Builder
	for i, m := range req.Messages {
		if i > 0 {
			prompt.WriteString("\n\n")
		}
		if len(req.Messages) > 1 {
			prompt.WriteString(string(m.Role) + ": ")
		}
		prompt.WriteString(m.Content)
	}

	data, err := p.client.PostJSON(ctx, p.baseURL+"/api/ai/generate", gatewayRequest{
		Prompt:      prompt.String(),
		System:      req.System,
		Model:       req.Model,
		MaxTokens:   maxTokens(req),
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, wrapErr(ctx, p.Name(), err)
	}

	var resp gatewayResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Join(ErrLLMFailed, fmt.Errorf("decode gateway response: %w", err))
	}
	if err := checkContent(resp.Text); err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}

	return &CompletionResponse{
		Content:      resp.Text,
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
