package specialist

import (
	"errors"
	"testing"

	"dealroom-supervisor/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GraphNarrative(t *testing.T) {
	_, payload, err := decodeEnvelope(registry.KnowledgeGraph, []byte(graphEnvelope))
	require.NoError(t, err)

	graph, ok := payload.(*GraphPayload)
	require.True(t, ok)
	assert.Len(t, graph.Contradictions, 1)

	out := payload.Narrative()
	assert.Contains(t, out, "Two documents disagree on ownership.")
	assert.Contains(t, out, `- "HoldCo owns 60%" [SPA.pdf] vs "HoldCo owns 100%" [CIM.pdf] (high)`)
	assert.Contains(t, out, "**Entities:** HoldCo Ltd (company)")
	assert.Contains(t, out, "- HoldCo Ltd -[owns 60%]-> Target GmbH")
}

func TestDecodeEnvelope_GenericForUnknownSpecialist(t *testing.T) {
	raw := []byte(`{"success": true, "result": {
		"summary": "Looks fine.",
		"confidence": 0.5,
		"findings": [{"metric": "ignored"}],
		"limitations": ["Draft data", "No audit"]
	}}`)

	_, payload, err := decodeEnvelope("legal_reviewer", raw)
	require.NoError(t, err)
	_, ok := payload.(*GenericPayload)
	require.True(t, ok)

	out := payload.Narrative()
	assert.Equal(t, "Looks fine.\n\n**Limitations:** Draft data No audit", out)
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing success", `{"result": {"summary": "x", "confidence": 0.5}}`, ErrMalformedResponse},
		{"relevance out of range", `{"success": true, "result": {"summary": "x", "confidence": 0.5, "sources": [{"relevance_score": 3}]}}`, ErrMalformedResponse},
		{"null result", `{"success": true, "result": null}`, ErrMalformedResponse},
		{"failed without message", `{"success": false}`, ErrSpecialistFailed},
		{"not json", `nope`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeEnvelope(registry.FinancialAnalyst, []byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSourceReference_Key(t *testing.T) {
	assert.Equal(t, "d1", SourceReference{DocumentID: "d1", ChunkID: "c1"}.Key())
	assert.Equal(t, "CIM.pdf#c2", SourceReference{DocumentName: "CIM.pdf", ChunkID: "c2"}.Key())
	assert.Equal(t, "", SourceReference{Snippet: "orphan"}.Key())

	assert.Equal(t, 0.0, SourceReference{}.Relevance())
	assert.Equal(t, 0.4, SourceReference{RelevanceScore: score(0.4)}.Relevance())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil, "%"))
	assert.Equal(t, "12.5 m EUR", formatValue(12.5, "m EUR"))
	assert.Equal(t, "n/a", formatValue("n/a", ""))
	assert.Equal(t, "1500000 EUR", formatValue(1500000.0, "EUR"))
	assert.Equal(t, "0.000015", formatValue(0.000015, ""))
}
