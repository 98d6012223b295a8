// Package synthesis merges specialist results into one response.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"dealroom-supervisor/internal/common/metrics"
	"dealroom-supervisor/internal/llm"
	"dealroom-supervisor/internal/supervisor/specialist"
	"dealroom-supervisor/pkg/registry"
)

const (
	NoInformationMessage = "I could not find information to answer this question in the deal data."
	ErrorPenalty         = 0.1
	DefaultTimeout       = 60 * time.Second
)

var ErrSynthesisFailed = errors.New("SYNTHESIS_FAILED")

const systemPrompt = `You are the lead analyst of an M&A due-diligence team. Several specialists answered the same question.
Write ONE response that integrates all of their findings without repeating yourself.
- Present financial figures first, then relationships and other context.
- When specialists disagree, present both positions and name the source of each.
- Keep every figure, period and document reference exactly as given.
- Mention briefly any analysis that could not be completed.
Do not refer to the specialists by name or describe how the answer was produced.`

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// ProviderFactory builds the LLM client used for merging. It is called at
// most once per Synthesizer.
type ProviderFactory func() (llm.Provider, error)

type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Response is the final answer returned to the caller.
type Response struct {
	Content        string                       `json:"content"`
	Confidence     float64                      `json:"confidence"`
	Sources        []specialist.SourceReference `json:"sources"`
	Specialists    []string                     `json:"specialists"`
	WasSynthesized bool                         `json:"wasSynthesized"`
	TotalLatencyMs int64                        `json:"totalLatencyMs"`
}

type Synthesizer struct {
	cfg      Config
	registry *registry.SpecialistRegistry
	factory  ProviderFactory
	logger   Logger

	once        sync.Once
	provider    llm.Provider
	providerErr error
}

func New(cfg Config, reg *registry.SpecialistRegistry, factory ProviderFactory, log Logger) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if reg == nil {
		reg = registry.Default()
	}
	return &Synthesizer{cfg: cfg, registry: reg, factory: factory, logger: log}
}

// Synthesize never fails: a failed merge degrades to labeled concatenation and
// no usable result degrades to the no-information answer.
func (s *Synthesizer) Synthesize(ctx context.Context, results []specialist.Result) Response {
	start := time.Now()

	var resp Response
	var mode string
	switch {
	case len(results) == 0:
		resp, mode = noInformation(), "empty"
	case len(results) == 1:
		resp, mode = passThrough(results[0]), "passthrough"
	default:
		resp, mode = s.merge(ctx, results)
	}

	resp.Specialists = specialistIDs(results)
	resp.TotalLatencyMs = sumTimings(results) + time.Since(start).Milliseconds()
	metrics.SynthesisTotal.WithLabelValues(mode).Inc()
	return resp
}

func noInformation() Response {
	return Response{
		Content:    NoInformationMessage,
		Confidence: 0,
		Sources:    []specialist.SourceReference{},
	}
}

func passThrough(r specialist.Result) Response {
	content := r.Output
	if r.Errored() {
		content = errorMessage(r)
	}
	sources := r.Sources
	if sources == nil {
		sources = []specialist.SourceReference{}
	}
	return Response{
		Content:    content,
		Confidence: r.Confidence,
		Sources:    sources,
	}
}

func errorMessage(r specialist.Result) string {
	if strings.TrimSpace(r.Output) == "" {
		return "I encountered an error while answering this question: " + r.Error
	}
	return fmt.Sprintf("%s\n\n_(%s)_", r.Output, r.Error)
}

func (s *Synthesizer) merge(ctx context.Context, results []specialist.Result) (Response, string) {
	usable := s.ordered(results)
	if len(usable) == 0 {
		return noInformation(), "empty"
	}

	resp := Response{
		Sources:        DedupeSources(results),
		Confidence:     AggregateConfidence(results),
		WasSynthesized: true,
	}

	content, err := s.narrate(ctx, usable, results)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("synthesis merge failed, concatenating", map[string]interface{}{
				"error":       err.Error(),
				"specialists": len(results),
			})
		}
		resp.Content = s.concatenate(usable, results)
		return resp, "concatenated"
	}
	resp.Content = content
	return resp, "llm"
}

// ordered returns the non-errored results, financial analysis first, by
// registry priority.
func (s *Synthesizer) ordered(results []specialist.Result) []specialist.Result {
	usable := make([]specialist.Result, 0, len(results))
	for _, r := range results {
		if !r.Errored() && strings.TrimSpace(r.Output) != "" {
			usable = append(usable, r)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return s.priority(usable[i].SpecialistID) < s.priority(usable[j].SpecialistID)
	})
	return usable
}

func (s *Synthesizer) priority(id string) int {
	if id == registry.FinancialAnalyst {
		return -1
	}
	if spec, ok := s.registry.Get(id); ok {
		return spec.Priority
	}
	return math.MaxInt32
}

func (s *Synthesizer) client() (llm.Provider, error) {
	s.once.Do(func() {
		if s.factory == nil {
			s.providerErr = fmt.Errorf("%w: no synthesis provider configured", ErrSynthesisFailed)
			return
		}
		s.provider, s.providerErr = s.factory()
	})
	return s.provider, s.providerErr
}

func (s *Synthesizer) narrate(ctx context.Context, usable, all []specialist.Result) (string, error) {
	provider, err := s.client()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(s.cfg.Model, systemPrompt, s.buildPrompt(usable, all))
	req.MaxTokens = s.cfg.MaxTokens
	req.Temperature = s.cfg.Temperature

	out, err := provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	content := strings.TrimSpace(out.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty merge", ErrSynthesisFailed)
	}
	return content, nil
}

func (s *Synthesizer) buildPrompt(usable, all []specialist.Result) string {
	var b strings.Builder
	b.WriteString("Specialist analyses:\n")
	for _, r := range usable {
		fmt.Fprintf(&b, "\n### %s (confidence %.2f)\n%s\n", s.registry.DisplayName(r.SpecialistID), r.Confidence, strings.TrimSpace(r.Output))
	}

	var notes []string
	for _, r := range all {
		if r.Errored() {
			notes = append(notes, fmt.Sprintf("- %s: %s", s.registry.DisplayName(r.SpecialistID), r.Error))
		}
	}
	if len(notes) > 0 {
		b.WriteString("\nAnalyses that could not be completed:\n")
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\nWrite the integrated response now.")
	return b.String()
}

func (s *Synthesizer) concatenate(usable, all []specialist.Result) string {
	parts := make([]string, 0, len(all))
	for _, r := range usable {
		parts = append(parts, fmt.Sprintf("**%s Analysis:** %s", s.registry.DisplayName(r.SpecialistID), strings.TrimSpace(r.Output)))
	}
	for _, r := range all {
		if r.Errored() {
			parts = append(parts, fmt.Sprintf("_%s analysis unavailable: %s_", s.registry.DisplayName(r.SpecialistID), r.Error))
		}
	}
	return strings.Join(parts, "\n\n")
}

// AggregateConfidence is the output-length weighted mean over non-errored
// results (weight = sqrt of the output length), minus ErrorPenalty per errored
// result, floored at 0 and rounded to two decimals.
func AggregateConfidence(results []specialist.Result) float64 {
	var weighted, weights, plain float64
	var valid, errored int
	for _, r := range results {
		if r.Errored() {
			errored++
			continue
		}
		w := math.Sqrt(float64(utf8.RuneCountInString(r.Output)))
		weighted += r.Confidence * w
		weights += w
		plain += r.Confidence
		valid++
	}

	var c float64
	switch {
	case weights > 0:
		c = weighted / weights
	case valid > 0:
		c = plain / float64(valid)
	}
	c -= ErrorPenalty * float64(errored)
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*100) / 100
}

// DedupeSources keeps one reference per identity key, the most relevant one,
// sorted by relevance descending. References without a key are kept as is.
func DedupeSources(results []specialist.Result) []specialist.SourceReference {
	out := make([]specialist.SourceReference, 0)
	index := make(map[string]int)
	for _, r := range results {
		for _, src := range r.Sources {
			key := src.Key()
			if key == "" {
				out = append(out, src)
				continue
			}
			if i, ok := index[key]; ok {
				if src.Relevance() > out[i].Relevance() {
					out[i] = src
				}
				continue
			}
			index[key] = len(out)
			out = append(out, src)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance() > out[j].Relevance()
	})
	return out
}

func specialistIDs(results []specialist.Result) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.SpecialistID)
	}
	return ids
}

func sumTimings(results []specialist.Result) int64 {
	var total int64
	for _, r := range results {
		total += r.TimingMs
	}
	return total
}
