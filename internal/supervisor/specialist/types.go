package specialist

import (
	"dealroom-supervisor/internal/supervisor/classifier"
)

// SourceReference points at the document evidence behind an answer.
type SourceReference struct {
	DocumentID     string   `json:"documentId,omitempty"`
	DocumentName   string   `json:"documentName,omitempty"`
	ChunkID        string   `json:"chunkId,omitempty"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty"`
	Snippet        string   `json:"snippet,omitempty"`
}

// Key is the identity used for deduplication: the document id, else the
// document name and chunk id. An empty key means the reference has no identity.
func (s SourceReference) Key() string {
	if s.DocumentID != "" {
		return s.DocumentID
	}
	if s.DocumentName == "" && s.ChunkID == "" {
		return ""
	}
	return s.DocumentName + "#" + s.ChunkID
}

// Relevance treats a missing score as zero.
func (s SourceReference) Relevance() float64 {
	if s.RelevanceScore == nil {
		return 0
	}
	return *s.RelevanceScore
}

// Result is one specialist's answer. Error is set only when no usable answer
// was produced; FallbackReason keeps the primary failure behind a stub.
type Result struct {
	SpecialistID   string            `json:"specialistId"`
	Output         string            `json:"output"`
	Confidence     float64           `json:"confidence"`
	Sources        []SourceReference `json:"sources"`
	TimingMs       int64             `json:"timingMs"`
	Stub           bool              `json:"stub,omitempty"`
	FallbackReason string            `json:"fallbackReason,omitempty"`
	Error          string            `json:"error,omitempty"`
}

func (r Result) Errored() bool {
	return r.Error != ""
}

// ExecutionContext carries the session identifiers and classification the
// specialists run under.
type ExecutionContext struct {
	Query          string
	DealID         string
	UserID         string
	OrganizationID string
	Classification classifier.Result
}

func score(v float64) *float64 {
	return &v
}
