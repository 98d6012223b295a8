package specialist

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dealroom-supervisor/internal/common/validation"
	"dealroom-supervisor/pkg/registry"
)

var envelopeSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "error": {"type": ["string", "null"]},
    "latency_ms": {"type": ["number", "null"], "minimum": 0},
    "result": {
      "type": ["object", "null"],
      "required": ["summary", "confidence"],
      "properties": {
        "summary": {"type": "string"},
        "confidence": {"type": "number", "minimum": 0, "maximum": 1},
        "sources": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "properties": {
              "document_id": {"type": ["string", "null"]},
              "document_name": {"type": ["string", "null"]},
              "chunk_id": {"type": ["string", "null"]},
              "relevance_score": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
              "snippet": {"type": ["string", "null"]}
            }
          }
        },
        "limitations": {"type": ["string", "array", "null"]},
        "follow_up_questions": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    }
  }
}`)

type envelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error"`
	LatencyMs float64         `json:"latency_ms"`
}

type wireSource struct {
	DocumentID     string   `json:"document_id"`
	DocumentName   string   `json:"document_name"`
	ChunkID        string   `json:"chunk_id"`
	RelevanceScore *float64 `json:"relevance_score"`
	Snippet        string   `json:"snippet"`
}

// textList accepts a single string or a list of strings.
type textList []string

func (l *textList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if strings.TrimSpace(one) != "" {
			*l = textList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Core is the part of every specialist payload the synthesizer relies on.
type Core struct {
	Summary           string       `json:"summary"`
	Confidence        float64      `json:"confidence"`
	Sources           []wireSource `json:"sources"`
	Limitations       textList     `json:"limitations"`
	FollowUpQuestions []string     `json:"follow_up_questions"`
}

func (c *Core) core() *Core { return c }

// Payload is a specialist-specific result. Domain fields are rendered only by
// the payload's own Narrative.
type Payload interface {
	Narrative() string
	core() *Core
}

type FinancialFinding struct {
	Metric     string      `json:"metric"`
	Value      interface{} `json:"value"`
	Unit       string      `json:"unit"`
	Period     string      `json:"period"`
	Source     string      `json:"source"`
	Note       string      `json:"note"`
	Confidence *float64    `json:"confidence"`
}

type FinancialPayload struct {
	Core
	Findings []FinancialFinding `json:"findings"`
}

func (p *FinancialPayload) Narrative() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Summary))
	if len(p.Findings) > 0 {
		b.WriteString("\n\n**Key findings:**")
		for _, f := range p.Findings {
			b.WriteString("\n- ")
			b.WriteString(f.Metric)
			if v := formatValue(f.Value, f.Unit); v != "" {
				b.WriteString(": " + v)
			}
			if f.Period != "" {
				b.WriteString(" (" + f.Period + ")")
			}
			if f.Note != "" {
				b.WriteString(". " + f.Note)
			}
			if f.Source != "" {
				b.WriteString(" [" + f.Source + "]")
			}
		}
	}
	writeTail(&b, &p.Core)
	return b.String()
}

type GraphEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type GraphPath struct {
	Nodes         []string `json:"nodes"`
	Relationships []string `json:"relationships"`
	Description   string   `json:"description"`
}

type Contradiction struct {
	StatementA  string `json:"statement_a"`
	SourceA     string `json:"source_a"`
	StatementB  string `json:"statement_b"`
	SourceB     string `json:"source_b"`
	Severity    string `json:"severity"`
	Explanation string `json:"explanation"`
}

type GraphPayload struct {
	Core
	Entities       []GraphEntity   `json:"entities"`
	Paths          []GraphPath     `json:"paths"`
	Contradictions []Contradiction `json:"contradictions"`
}

func (p *GraphPayload) Narrative() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Summary))

	if len(p.Contradictions) > 0 {
		b.WriteString("\n\n**Contradictions:**")
		for _, c := range p.Contradictions {
			b.WriteString(fmt.Sprintf("\n- %q%s vs %q%s", c.StatementA, bracket(c.SourceA), c.StatementB, bracket(c.SourceB)))
			if c.Severity != "" {
				b.WriteString(" (" + c.Severity + ")")
			}
			if c.Explanation != "" {
				b.WriteString(": " + c.Explanation)
			}
		}
	}
	if len(p.Entities) > 0 {
		names := make([]string, 0, len(p.Entities))
		for _, e := range p.Entities {
			if e.Type != "" {
				names = append(names, fmt.Sprintf("%s (%s)", e.Name, e.Type))
			} else {
				names = append(names, e.Name)
			}
		}
		b.WriteString("\n\n**Entities:** " + strings.Join(names, ", "))
	}
	if len(p.Paths) > 0 {
		b.WriteString("\n\n**Relationships:**")
		for _, path := range p.Paths {
			b.WriteString("\n- " + renderPath(path))
		}
	}
	writeTail(&b, &p.Core)
	return b.String()
}

// GenericPayload is used for specialists without a domain shape.
type GenericPayload struct {
	Core
}

func (p *GenericPayload) Narrative() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Summary))
	writeTail(&b, &p.Core)
	return b.String()
}

// decodeEnvelope validates raw against the envelope schema and decodes the
// payload variant for specialistID.
func decodeEnvelope(specialistID string, raw []byte) (*envelope, Payload, error) {
	vr, err := envelopeSchema.ValidateBytes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !vr.Valid {
		return nil, nil, fmt.Errorf("%w: %s", ErrMalformedResponse, vr.Error())
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "success=false"
		}
		return &env, nil, fmt.Errorf("%w: %s", ErrSpecialistFailed, msg)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return &env, nil, fmt.Errorf("%w: success without result", ErrMalformedResponse)
	}

	var payload Payload
	switch specialistID {
	case registry.FinancialAnalyst:
		payload = &FinancialPayload{}
	case registry.KnowledgeGraph:
		payload = &GraphPayload{}
	default:
		payload = &GenericPayload{}
	}
	if err := json.Unmarshal(env.Result, payload); err != nil {
		return &env, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &env, payload, nil
}

func toSourceRefs(in []wireSource) []SourceReference {
	out := make([]SourceReference, 0, len(in))
	for _, s := range in {
		out = append(out, SourceReference{
			DocumentID:     s.DocumentID,
			DocumentName:   s.DocumentName,
			ChunkID:        s.ChunkID,
			RelevanceScore: s.RelevanceScore,
			Snippet:        s.Snippet,
		})
	}
	return out
}

func writeTail(b *strings.Builder, c *Core) {
	if len(c.Limitations) > 0 {
		b.WriteString("\n\n**Limitations:** " + strings.Join(c.Limitations, " "))
	}
	if len(c.FollowUpQuestions) > 0 {
		b.WriteString("\n\n**Follow-up questions:**")
		for _, q := range c.FollowUpQuestions {
			b.WriteString("\n- " + q)
		}
	}
}

func formatValue(v interface{}, unit string) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

func renderPath(p GraphPath) string {
	if len(p.Nodes) == 0 {
		return p.Description
	}
	var b strings.Builder
	b.WriteString(p.Nodes[0])
	for i := 1; i < len(p.Nodes); i++ {
		rel := "related to"
		if i-1 < len(p.Relationships) && p.Relationships[i-1] != "" {
			rel = p.Relationships[i-1]
		}
		b.WriteString(" -[" + rel + "]-> " + p.Nodes[i])
	}
	if p.Description != "" {
		b.WriteString(": " + p.Description)
	}
	return b.String()
}

func bracket(s string) string {
	if s == "" {
		return ""
	}
	return " [" + s + "]"
}
