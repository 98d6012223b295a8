// Package agent runs the generic tool-augmented reasoning pass: gather deal
// context with the permitted tools, then ask the model to answer in a role.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"dealroom-supervisor/internal/llm"
	"dealroom-supervisor/internal/tools"

	"golang.org/x/sync/errgroup"
)

var ErrAgentFailed = errors.New("AGENT_FAILED")

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Task is one reasoning request.
type Task struct {
	RolePrompt     string
	Query          string
	DealID         string
	OrganizationID string
	Model          string
	Tools          []string
	MaxTokens      int
	Temperature    float64
}

// Answer is the model output plus the references gathered on the way.
type Answer struct {
	Content   string
	Model     string
	Sources   []tools.Source
	ToolsUsed []string
	Duration  time.Duration
}

type ToolAgent struct {
	provider     llm.Provider
	catalog      *tools.Catalog
	logger       Logger
	defaultModel string
	maxContext   int
}

type Option func(*ToolAgent)

// WithDefaultModel is used when a Task names no model.
func WithDefaultModel(model string) Option {
	return func(a *ToolAgent) { a.defaultModel = model }
}

// WithMaxContext caps the characters of tool output placed in the prompt.
func WithMaxContext(n int) Option {
	return func(a *ToolAgent) { a.maxContext = n }
}

func New(provider llm.Provider, catalog *tools.Catalog, log Logger, opts ...Option) *ToolAgent {
	if catalog == nil {
		catalog = tools.NewCatalog(nil, nil, tools.Options{})
	}
	a := &ToolAgent{
		provider:   provider,
		catalog:    catalog,
		logger:     log,
		maxContext: 24000,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run gathers context from the task's tools and completes the prompt.
// Tool failures are logged and skipped; only a model failure is an error.
func (a *ToolAgent) Run(ctx context.Context, task Task) (*Answer, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("%w: no model provider configured", ErrAgentFailed)
	}
	start := time.Now()

	gathered := a.gather(ctx, task)

	model := task.Model
	if model == "" {
		model = a.defaultModel
	}
	req := llm.UserPrompt(model, task.RolePrompt, a.buildPrompt(task, gathered))
	req.MaxTokens = task.MaxTokens
	req.Temperature = task.Temperature

	resp, err := a.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgentFailed, err)
	}

	ans := &Answer{
		Content:  strings.TrimSpace(resp.Content),
		Model:    resp.Model,
		Duration: time.Since(start),
	}
	for _, r := range gathered {
		if r == nil {
			continue
		}
		ans.ToolsUsed = append(ans.ToolsUsed, r.Tool)
		ans.Sources = append(ans.Sources, r.Sources...)
	}
	return ans, nil
}

// gather runs the selected tools concurrently; each writes its own slot.
func (a *ToolAgent) gather(ctx context.Context, task Task) []*tools.Result {
	selected := a.catalog.Select(task.Tools)
	out := make([]*tools.Result, len(selected))
	if len(selected) == 0 {
		return out
	}

	req := tools.Request{Query: task.Query, DealID: task.DealID, OrganizationID: task.OrganizationID}
	var g errgroup.Group
	for i, t := range selected {
		g.Go(func() error {
			res, err := t.Run(ctx, req)
			if err != nil {
				a.warn("tool failed", map[string]interface{}{"tool": t.Name(), "error": err.Error()})
				return nil
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *ToolAgent) buildPrompt(task Task, gathered []*tools.Result) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Question: %s", task.Query))

	budget := a.maxContext
	var ctxParts []string
	for _, r := range gathered {
		if r == nil || budget <= 0 {
			continue
		}
		content := r.Content
		if len(content) > budget {
			cut := budget
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		budget -= len(content)
		ctxParts = append(ctxParts, fmt.Sprintf("### %s\n%s", r.Tool, content))
	}

	if len(ctxParts) > 0 {
		parts = append(parts, "\nDeal data:")
		parts = append(parts, ctxParts...)
		parts = append(parts, "\nInstructions:")
		parts = append(parts, "- Answer using only the deal data above")
		parts = append(parts, "- Name the documents you rely on")
		parts = append(parts, "- If the data is insufficient, say so plainly")
	} else {
		parts = append(parts, "\nNo deal data was retrieved. Answer from general knowledge and say that no deal documents were consulted.")
	}

	parts = append(parts, "\nAnswer:")
	return strings.Join(parts, "\n")
}

func (a *ToolAgent) warn(msg string, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.Warn(msg, fields)
	}
}
