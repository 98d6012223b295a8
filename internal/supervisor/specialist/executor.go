// Package specialist invokes the specialists selected by the router, each
// with a dedicated endpoint tried first and the generic agent as fallback.
package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealroom-supervisor/internal/agent"
	commonhttp "dealroom-supervisor/internal/common/http"
	"dealroom-supervisor/internal/common/metrics"
	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/internal/supervisor/router"
	"dealroom-supervisor/internal/tools"
	"dealroom-supervisor/pkg/registry"

	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 45 * time.Second

var (
	ErrSpecialistTimeout = errors.New("SPECIALIST_TIMEOUT")
	ErrSpecialistFailed  = errors.New("SPECIALIST_FAILED")
	ErrMalformedResponse = errors.New("SPECIALIST_RESPONSE_MALFORMED")
	ErrFallbackFailed    = errors.New("FALLBACK_AGENT_FAILED")
)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// Fallback is the generic tool-augmented reasoning pass.
type Fallback interface {
	Run(ctx context.Context, task agent.Task) (*agent.Answer, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int
}

type Executor struct {
	cfg      Config
	registry *registry.SpecialistRegistry
	client   *commonhttp.Client
	fallback Fallback
	logger   Logger
}

func NewExecutor(cfg Config, reg *registry.SpecialistRegistry, fallback Fallback, log Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if reg == nil {
		reg = registry.Default()
	}
	client := commonhttp.NewClient(cfg.Timeout)
	if cfg.APIKey != "" {
		client = client.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Executor{
		cfg:      cfg,
		registry: reg,
		client:   client,
		fallback: fallback,
		logger:   log,
	}
}

// Execute returns one result per selected specialist, in selection order.
// Parallel decisions run every specialist concurrently; a failure or timeout
// in one never cancels the others.
func (e *Executor) Execute(ctx context.Context, decision router.Decision, ec ExecutionContext) []Result {
	ids := decision.SelectedSpecialists
	results := make([]Result, len(ids))

	if !decision.IsParallel || len(ids) < 2 {
		for i, id := range ids {
			results[i] = e.run(ctx, id, ec)
		}
		return results
	}

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.run(ctx, id, ec)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// run never fails; every path ends in a Result.
func (e *Executor) run(ctx context.Context, id string, ec ExecutionContext) Result {
	start := time.Now()
	spec := e.specialist(id)

	var primaryErr error
	if e.hasEndpoint(spec) {
		res, err := e.withBudget(ctx, id, func(ctx context.Context) (*Result, error) {
			return e.callPrimary(ctx, spec, ec)
		})
		if err == nil {
			return e.finish(*res, start, "primary")
		}
		primaryErr = err
		e.warn("specialist endpoint failed, using fallback", map[string]interface{}{
			"specialist": id,
			"error":      err.Error(),
		})
	}

	res, err := e.withBudget(ctx, id, func(ctx context.Context) (*Result, error) {
		return e.runFallback(ctx, spec, ec)
	})
	if err == nil {
		res.Stub = true
		if primaryErr != nil {
			res.FallbackReason = primaryErr.Error()
		}
		return e.finish(*res, start, "fallback")
	}

	if errors.Is(err, ErrSpecialistTimeout) {
		e.warn("specialist timed out", map[string]interface{}{"specialist": id, "budget": e.cfg.Timeout.String()})
		return e.finish(Result{
			SpecialistID:   id,
			Output:         fmt.Sprintf("The %s analysis did not finish within %s.", e.registry.DisplayName(id), e.cfg.Timeout),
			Confidence:     TimeoutConfidence,
			Sources:        []SourceReference{},
			Stub:           true,
			FallbackReason: errString(primaryErr),
			Error:          err.Error(),
		}, start, "timeout")
	}

	e.warn("specialist fallback failed", map[string]interface{}{"specialist": id, "error": err.Error()})
	return e.finish(Result{
		SpecialistID:   id,
		Output:         fmt.Sprintf("I'm sorry, I couldn't complete the %s analysis for this question.", e.registry.DisplayName(id)),
		Confidence:     FailureConfidence,
		Sources:        []SourceReference{},
		Stub:           true,
		FallbackReason: errString(primaryErr),
		Error:          err.Error(),
	}, start, "error")
}

func (e *Executor) finish(res Result, start time.Time, outcome string) Result {
	elapsed := time.Since(start)
	res.TimingMs = elapsed.Milliseconds()
	if res.Sources == nil {
		res.Sources = []SourceReference{}
	}
	metrics.SpecialistCalls.WithLabelValues(res.SpecialistID, outcome).Inc()
	metrics.SpecialistDuration.WithLabelValues(res.SpecialistID).Observe(elapsed.Seconds())
	return res
}

// withBudget races fn against the per-tier budget. On expiry the call is
// abandoned; its goroutine finishes into a buffered channel nobody reads.
func (e *Executor) withBudget(ctx context.Context, id string, fn func(context.Context) (*Result, error)) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %s panicked: %v", ErrSpecialistFailed, id, r)}
			}
		}()
		res, err := fn(ctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(id, e.cfg.Timeout)
		}
		if o.err == nil && o.res == nil {
			return nil, fmt.Errorf("%w: %s returned no result", ErrSpecialistFailed, id)
		}
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(id, e.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSpecialistFailed, id, ctx.Err())
	}
}

type primaryRequest struct {
	Query          string   `json:"query"`
	DealID         string   `json:"deal_id"`
	OrganizationID string   `json:"organization_id,omitempty"`
	DomainHints    []string `json:"domain_hints,omitempty"`
}

func (e *Executor) callPrimary(ctx context.Context, spec *registry.Specialist, ec ExecutionContext) (*Result, error) {
	body := primaryRequest{
		Query:          ec.Query,
		DealID:         ec.DealID,
		OrganizationID: ec.OrganizationID,
		DomainHints:    spec.DomainHints,
	}

	raw, err := e.client.PostJSON(ctx, e.endpointURL(spec.Endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpecialistFailed, spec.ID, err)
	}

	_, payload, err := decodeEnvelope(spec.ID, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.ID, err)
	}

	core := payload.core()
	return &Result{
		SpecialistID: spec.ID,
		Output:       payload.Narrative(),
		Confidence:   clampUnit(core.Confidence),
		Sources:      toSourceRefs(core.Sources),
	}, nil
}

func (e *Executor) runFallback(ctx context.Context, spec *registry.Specialist, ec ExecutionContext) (*Result, error) {
	if e.fallback == nil {
		return nil, fmt.Errorf("%w: %s: no fallback agent configured", ErrFallbackFailed, spec.ID)
	}

	ans, err := e.fallback.Run(ctx, agent.Task{
		RolePrompt:     spec.RolePrompt,
		Query:          ec.Query,
		DealID:         ec.DealID,
		OrganizationID: ec.OrganizationID,
		Model:          ec.Classification.SuggestedModel,
		Tools:          taskTools(ec.Classification),
		MaxTokens:      e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFallbackFailed, spec.ID, err)
	}
	if ans == nil || strings.TrimSpace(ans.Content) == "" {
		return nil, fmt.Errorf("%w: %s: empty answer", ErrFallbackFailed, spec.ID)
	}

	return &Result{
		SpecialistID: spec.ID,
		Output:       ans.Content,
		Confidence:   EstimateConfidence(ans.Content),
		Sources:      fromToolSources(ans.Sources),
	}, nil
}

// taskTools widens an empty allowlist to knowledge-base search when the
// query still needs deal data.
func taskTools(c classifier.Result) []string {
	if len(c.SuggestedTools) == 0 && classifier.ShouldRetrieve(c) {
		return []string{tools.QueryKnowledgeBase}
	}
	return c.SuggestedTools
}

func (e *Executor) specialist(id string) *registry.Specialist {
	if s, ok := e.registry.Get(id); ok {
		return s
	}
	return &registry.Specialist{
		ID:          id,
		DisplayName: e.registry.DisplayName(id),
		RolePrompt:  "You are a helpful deal-room assistant. Answer from the deal data provided.",
	}
}

func (e *Executor) hasEndpoint(spec *registry.Specialist) bool {
	if spec.Endpoint == "" {
		return false
	}
	return e.cfg.BaseURL != "" || isAbsolute(spec.Endpoint)
}

func (e *Executor) endpointURL(endpoint string) string {
	if isAbsolute(endpoint) {
		return endpoint
	}
	return strings.TrimRight(e.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (e *Executor) warn(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, fields)
	}
}

func fromToolSources(in []tools.Source) []SourceReference {
	out := make([]SourceReference, 0, len(in))
	for _, s := range in {
		ref := SourceReference{
			DocumentID:   s.DocumentID,
			DocumentName: s.DocumentName,
			ChunkID:      s.ChunkID,
			Snippet:      s.Snippet,
		}
		if s.Relevance > 0 {
			ref.RelevanceScore = score(clampUnit(s.Relevance))
		}
		out = append(out, ref)
	}
	return out
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func timeoutErr(id string, budget time.Duration) error {
	return fmt.Errorf("%w: %s exceeded %s budget", ErrSpecialistTimeout, id, budget)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
