// Package llm is the narrow completion contract the supervisor uses for the
// generic agent path and for synthesis. Providers are black boxes behind it.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrLLMTimeout = errors.New("LLM_TIMEOUT")
	ErrLLMFailed  = errors.New("LLM_FAILED")
	ErrNoContent  = errors.New("LLM_EMPTY_RESPONSE")
)

// Provider defines the interface for LLM providers.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// CompletionRequest carries one prompt. System is sent through the provider's
// native system channel when it has one.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// UserPrompt builds a single-turn request.
func UserPrompt(model, system, prompt string) CompletionRequest {
	return CompletionRequest{
		Model:    model,
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

const defaultMaxTokens = 4096

func maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

// wrapErr classifies a provider error as timeout or failure while keeping the
// original in the chain.
func wrapErr(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrLLMTimeout, err)
	}
	return errors.Join(ErrLLMFailed, errors.New(provider+" API error: "+err.Error()))
}

func checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrNoContent
	}
	return nil
}
