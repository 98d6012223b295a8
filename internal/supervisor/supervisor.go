// Package supervisor is the entry point of the query pipeline: classify,
// route, execute the selected specialists, synthesize one response.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dealroom-supervisor/internal/common/metrics"
	"dealroom-supervisor/internal/common/observability"
	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/internal/supervisor/router"
	"dealroom-supervisor/internal/supervisor/specialist"
	"dealroom-supervisor/internal/supervisor/synthesis"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Query is the immutable input of one run.
type Query struct {
	Text           string `json:"text"`
	DealID         string `json:"dealId"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// RunResult carries every stage's output so trace metadata can be derived.
type RunResult struct {
	RunID          string              `json:"runId"`
	Query          Query               `json:"query"`
	Classification classifier.Result   `json:"classification"`
	Routing        router.Decision     `json:"routing"`
	Results        []specialist.Result `json:"results"`
	Response       synthesis.Response  `json:"response"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

type Router interface {
	Route(c classifier.Result, query string) router.Decision
}

type Executor interface {
	Execute(ctx context.Context, decision router.Decision, ec specialist.ExecutionContext) []specialist.Result
}

type Synthesizer interface {
	Synthesize(ctx context.Context, results []specialist.Result) synthesis.Response
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type Supervisor struct {
	classifier  Classifier
	router      Router
	executor    Executor
	synthesizer Synthesizer
	obs         *observability.Observability
	logger      Logger
}

func New(c Classifier, r Router, e Executor, s Synthesizer, obs *observability.Observability, log Logger) *Supervisor {
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Supervisor{
		classifier:  c,
		router:      r,
		executor:    e,
		synthesizer: s,
		obs:         obs,
		logger:      log,
	}
}

// Run answers q. It does not fail: every stage degrades to a valid output and
// an unexpected panic yields the no-information response.
func (s *Supervisor) Run(ctx context.Context, q Query) (result *RunResult) {
	start := time.Now()
	result = &RunResult{RunID: uuid.NewString(), Query: q}

	ctx, span := s.obs.StartSpan(ctx, "supervisor.run",
		attribute.String("run.id", result.RunID),
		attribute.String("deal.id", q.DealID),
		attribute.String("user.id", q.UserID),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("supervisor panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log(func(l Logger) {
				l.Error("supervisor run panicked", map[string]interface{}{"runId": result.RunID, "panic": fmt.Sprint(r)})
			})
			result.Response = synthesis.Response{
				Content:     synthesis.NoInformationMessage,
				Sources:     []specialist.SourceReference{},
				Specialists: []string{},
			}
		}
	}()

	result.Classification = s.classify(ctx, q.Text)
	result.Routing = s.route(ctx, result.Classification, q.Text)
	result.Results = s.execute(ctx, result.Routing, specialist.ExecutionContext{
		Query:          q.Text,
		DealID:         q.DealID,
		UserID:         q.UserID,
		OrganizationID: q.OrganizationID,
		Classification: result.Classification,
	})
	result.Response = s.synthesize(ctx, result.Results)

	elapsed := time.Since(start)
	metrics.RunDuration.Observe(elapsed.Seconds())
	s.obs.RecordRun(ctx, string(result.Classification.Intent), string(result.Classification.Complexity), len(result.Results))

	meta := TraceMetadata(result)
	span.SetAttributes(attributes(meta)...)
	s.log(func(l Logger) {
		l.Info("supervisor run completed", map[string]interface{}{
			"runId":          result.RunID,
			"dealId":         q.DealID,
			"intent":         meta["intent"],
			"complexity":     meta["complexity"],
			"specialists":    meta["specialists"],
			"confidence":     meta["responseConfidence"],
			"wasSynthesized": meta["wasSynthesized"],
			"durationMs":     elapsed.Milliseconds(),
		})
	})
	return result
}

func (s *Supervisor) classify(ctx context.Context, text string) classifier.Result {
	ctx, span := s.obs.StartSpan(ctx, "supervisor.classify")
	defer span.End()

	c := s.classifier.Classify(ctx, text)
	metrics.ClassificationsTotal.WithLabelValues(string(c.Intent), string(c.Complexity), string(c.Method)).Inc()
	span.SetAttributes(
		attribute.String("intent", string(c.Intent)),
		attribute.Float64("intent.confidence", c.IntentConfidence),
		attribute.String("method", string(c.Method)),
		attribute.String("complexity", string(c.Complexity)),
	)
	return c
}

func (s *Supervisor) route(ctx context.Context, c classifier.Result, text string) router.Decision {
	_, span := s.obs.StartSpan(ctx, "supervisor.route")
	defer span.End()

	d := s.router.Route(c, text)
	span.SetAttributes(
		attribute.StringSlice("specialists", d.SelectedSpecialists),
		attribute.Bool("parallel", d.IsParallel),
		attribute.String("rationale", d.Rationale),
	)
	return d
}

func (s *Supervisor) execute(ctx context.Context, d router.Decision, ec specialist.ExecutionContext) []specialist.Result {
	ctx, span := s.obs.StartSpan(ctx, "supervisor.execute",
		attribute.Int("specialists.count", len(d.SelectedSpecialists)),
	)
	defer span.End()

	results := s.executor.Execute(ctx, d, ec)
	for _, r := range results {
		span.AddEvent("specialist.result", trace.WithAttributes(
			attribute.String("specialist", r.SpecialistID),
			attribute.Float64("confidence", r.Confidence),
			attribute.Bool("stub", r.Stub),
			attribute.Int64("timing_ms", r.TimingMs),
			attribute.String("error", r.Error),
		))
	}
	return results
}

func (s *Supervisor) synthesize(ctx context.Context, results []specialist.Result) synthesis.Response {
	ctx, span := s.obs.StartSpan(ctx, "supervisor.synthesize")
	defer span.End()

	resp := s.synthesizer.Synthesize(ctx, results)
	span.SetAttributes(
		attribute.Bool("synthesized", resp.WasSynthesized),
		attribute.Float64("confidence", resp.Confidence),
		attribute.Int("sources", len(resp.Sources)),
	)
	return resp
}

func (s *Supervisor) log(fn func(Logger)) {
	if s.logger != nil {
		fn(s.logger)
	}
}

// TraceMetadata flattens a run into the fields reported to external tracing.
func TraceMetadata(r *RunResult) map[string]interface{} {
	if r == nil {
		return map[string]interface{}{}
	}
	c := r.Classification

	var stubs, errored []string
	for _, res := range r.Results {
		if res.Stub {
			stubs = append(stubs, res.SpecialistID)
		}
		if res.Errored() {
			errored = append(errored, res.SpecialistID)
		}
	}

	return map[string]interface{}{
		"runId":                r.RunID,
		"intent":               string(c.Intent),
		"intentConfidence":     c.IntentConfidence,
		"classificationMethod": string(c.Method),
		"complexity":           string(c.Complexity),
		"complexityConfidence": c.ComplexityConfidence,
		"toolAccess":           string(c.ToolAccess),
		"toolCount":            len(c.SuggestedTools),
		"suggestedModel":       c.SuggestedModel,
		"specialists":          nonNil(r.Routing.SelectedSpecialists),
		"isParallel":           r.Routing.IsParallel,
		"routingRationale":     r.Routing.Rationale,
		"stubSpecialists":      nonNil(stubs),
		"erroredSpecialists":   nonNil(errored),
		"responseConfidence":   r.Response.Confidence,
		"wasSynthesized":       r.Response.WasSynthesized,
		"sourceCount":          len(r.Response.Sources),
		"totalLatencyMs":       r.Response.TotalLatencyMs,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func attributes(meta map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := "supervisor." + k
		switch v := meta[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(key, v))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
