// Package classifier assigns an intent and a complexity tier to a deal-room
// query. Classification never fails: every internal error degrades to the
// regex result or the factual default.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"dealroom-supervisor/internal/tools"
)

type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentMeta     Intent = "meta"
	IntentFactual  Intent = "factual"
	IntentTask     Intent = "task"
)

type Method string

const (
	MethodSemantic Method = "semantic"
	MethodRegex    Method = "regex"
	MethodDefault  Method = "default"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

type ToolAccess string

const (
	ToolAccessNone       ToolAccess = "none"
	ToolAccessRestricted ToolAccess = "restricted"
	ToolAccessAll        ToolAccess = "all"
)

const (
	DefaultSemanticThreshold = 0.6
	DefaultSimpleWordCeiling = 10
	defaultConfidence        = 0.5
)

// MediumTierTools is the allowlist for medium-complexity queries.
var MediumTierTools = []string{
	tools.QueryKnowledgeBase,
	tools.SearchDocuments,
	tools.GetDocumentInfo,
	tools.GetFindings,
	tools.GetQAItems,
}

// Result is produced once per query and never mutated.
type Result struct {
	Intent               Intent     `json:"intent"`
	IntentConfidence     float64    `json:"intentConfidence"`
	Method               Method     `json:"method"`
	Complexity           Complexity `json:"complexity"`
	ComplexityConfidence float64    `json:"complexityConfidence"`
	ToolAccess           ToolAccess `json:"toolAccess"`
	SuggestedTools       []string   `json:"suggestedTools"`
	SuggestedModel       string     `json:"suggestedModel"`
}

type TierModels struct {
	Simple  string
	Medium  string
	Complex string
}

type Config struct {
	SemanticThreshold float64
	SimpleWordCeiling int
	Models            TierModels
	// AllTools is the unrestricted tool set; defaults to the full catalog.
	AllTools []string
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Semantic returns the nearest anchor intent for a query. ok is false when
// the strategy has no answer.
type Semantic interface {
	Nearest(ctx context.Context, text string) (intent Intent, similarity float64, err error)
}

type Classifier struct {
	cfg      Config
	semantic Semantic
	logger   Logger
}

// New builds a classifier. semantic may be nil, leaving regex only.
func New(cfg Config, semantic Semantic, log Logger) *Classifier {
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = DefaultSemanticThreshold
	}
	if cfg.SimpleWordCeiling <= 0 {
		cfg.SimpleWordCeiling = DefaultSimpleWordCeiling
	}
	if len(cfg.AllTools) == 0 {
		cfg.AllTools = tools.AllNames
	}
	return &Classifier{cfg: cfg, semantic: semantic, logger: log}
}

// Classify returns the intent and complexity of text.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	complexity, complexityConf := c.complexity(text)
	intent, intentConf, method := c.intent(ctx, text)

	res := Result{
		Intent:               intent,
		IntentConfidence:     clamp01(intentConf),
		Method:               method,
		Complexity:           complexity,
		ComplexityConfidence: clamp01(complexityConf),
	}
	res.ToolAccess, res.SuggestedTools = c.toolsFor(complexity)
	res.SuggestedModel = c.modelFor(complexity)

	c.trace(text, res)
	return res
}

// intent runs the strategies; a panic in either yields the factual default.
func (c *Classifier) intent(ctx context.Context, text string) (intent Intent, conf float64, method Method) {
	defer func() {
		if r := recover(); r != nil {
			c.warn("intent classification panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			intent, conf, method = IntentFactual, defaultConfidence, MethodDefault
		}
	}()

	regexIntent, regexConf, regexMethod := matchIntent(text)

	semIntent, semConf, ok := c.semanticIntent(ctx, text)
	if !ok {
		return regexIntent, regexConf, regexMethod
	}
	if semConf >= c.cfg.SemanticThreshold {
		return semIntent, semConf, MethodSemantic
	}
	if semIntent == regexIntent {
		return regexIntent, max(semConf, regexConf), MethodSemantic
	}
	return regexIntent, regexConf, regexMethod
}

func (c *Classifier) semanticIntent(ctx context.Context, text string) (Intent, float64, bool) {
	if c.semantic == nil || strings.TrimSpace(text) == "" {
		return "", 0, false
	}
	intent, sim, err := c.semantic.Nearest(ctx, text)
	if err != nil {
		c.warn("semantic classification unavailable", map[string]interface{}{"error": err.Error()})
		return "", 0, false
	}
	if !validIntent(intent) {
		return "", 0, false
	}
	return intent, clamp01(sim), true
}

func (c *Classifier) complexity(text string) (Complexity, float64) {
	return matchComplexity(text, c.cfg.SimpleWordCeiling)
}

func (c *Classifier) toolsFor(cx Complexity) (ToolAccess, []string) {
	switch cx {
	case ComplexitySimple:
		return ToolAccessNone, []string{}
	case ComplexityMedium:
		return ToolAccessRestricted, append([]string(nil), MediumTierTools...)
	default:
		return ToolAccessAll, append([]string(nil), c.cfg.AllTools...)
	}
}

func (c *Classifier) modelFor(cx Complexity) string {
	switch cx {
	case ComplexitySimple:
		return c.cfg.Models.Simple
	case ComplexityMedium:
		return c.cfg.Models.Medium
	default:
		return c.cfg.Models.Complex
	}
}

// trace logs the decision; it must not influence the result.
func (c *Classifier) trace(text string, res Result) {
	if c.logger == nil {
		return
	}
	defer func() { _ = recover() }()
	c.logger.Debug("query classified", map[string]interface{}{
		"queryLength":          len(text),
		"intent":               string(res.Intent),
		"intentConfidence":     res.IntentConfidence,
		"method":               string(res.Method),
		"complexity":           string(res.Complexity),
		"complexityConfidence": res.ComplexityConfidence,
		"toolAccess":           string(res.ToolAccess),
		"toolCount":            len(res.SuggestedTools),
		"model":                res.SuggestedModel,
	})
}

func (c *Classifier) warn(msg string, fields map[string]interface{}) {
	if c.logger == nil {
		return
	}
	defer func() { _ = recover() }()
	c.logger.Warn(msg, fields)
}

// ShouldRetrieve reports whether the query needs deal data. Greeting and
// meta queries skip retrieval unless their complexity says otherwise.
func ShouldRetrieve(r Result) bool {
	if r.Complexity == ComplexityMedium || r.Complexity == ComplexityComplex {
		return true
	}
	return r.Intent != IntentGreeting && r.Intent != IntentMeta
}

func validIntent(i Intent) bool {
	switch i {
	case IntentGreeting, IntentMeta, IntentFactual, IntentTask:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
