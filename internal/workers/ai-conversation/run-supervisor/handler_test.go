package runsupervisor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commonerrors "dealroom-supervisor/internal/common/errors"
	"dealroom-supervisor/internal/supervisor"
	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/internal/supervisor/router"
	"dealroom-supervisor/internal/supervisor/specialist"
	"dealroom-supervisor/internal/supervisor/synthesis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: make(map[string]interface{})}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, l.mergeFields(fields))
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	return &TestLogger{t: l.t, fields: l.mergeFields(fields)}
}

func (l *TestLogger) mergeFields(fields map[string]interface{}) map[string]interface{} {
	all := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	return all
}

type fakeRunner struct {
	queries []supervisor.Query
}

func (r *fakeRunner) Run(ctx context.Context, q supervisor.Query) *supervisor.RunResult {
	r.queries = append(r.queries, q)
	return &supervisor.RunResult{
		RunID: "run-42",
		Query: q,
		Classification: classifier.Result{
			Intent:         classifier.IntentFactual,
			Complexity:     classifier.ComplexityMedium,
			SuggestedTools: classifier.MediumTierTools,
			SuggestedModel: "sonnet",
		},
		Routing: router.Decision{SelectedSpecialists: []string{"financial_analyst"}},
		Results: []specialist.Result{{SpecialistID: "financial_analyst", Output: "EBITDA was 12.4m.", Confidence: 0.9}},
		Response: synthesis.Response{
			Content:     "EBITDA was 12.4m.",
			Confidence:  0.9,
			Sources:     []specialist.SourceReference{{DocumentID: "d1"}},
			Specialists: []string{"financial_analyst"},
		},
	}
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func TestParseInput(t *testing.T) {
	input, err := ParseInput([]byte(`{"question": "What is the EBITDA?", "dealId": "deal-1", "userId": "user-1", "organizationId": "org-1", "extra": true}`))
	require.NoError(t, err)
	assert.Equal(t, "What is the EBITDA?", input.Question)
	assert.Equal(t, "deal-1", input.DealID)
	assert.Equal(t, "org-1", input.OrganizationID)

	input, err = ParseInput([]byte(`{"question": "Hi", "dealId": "deal-1", "userId": "user-1", "organizationId": null}`))
	require.NoError(t, err)
	assert.Empty(t, input.OrganizationID)
}

func TestParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		variables string
	}{
		{"not json", `question=hi`},
		{"missing question", `{"dealId": "deal-1", "userId": "user-1"}`},
		{"empty question", `{"question": "", "dealId": "deal-1", "userId": "user-1"}`},
		{"missing deal", `{"question": "Hi", "userId": "user-1"}`},
		{"wrong type", `{"question": 7, "dealId": "deal-1", "userId": "user-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.variables))
			require.Error(t, err)

			std := commonerrors.Normalize(err)
			assert.Equal(t, commonerrors.ErrCodeInputInvalid, std.Code)
			assert.False(t, std.Retryable)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(createTestConfig(), runner, NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Question:       "What is the EBITDA?",
		DealID:         "deal-1",
		UserID:         "user-1",
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	require.Len(t, runner.queries, 1)
	assert.Equal(t, supervisor.Query{Text: "What is the EBITDA?", DealID: "deal-1", UserID: "user-1", OrganizationID: "org-1"}, runner.queries[0])

	assert.Equal(t, "EBITDA was 12.4m.", out.Response.Content)
	assert.Equal(t, "run-42", out.TraceMetadata["runId"])
	assert.Equal(t, 5, out.TraceMetadata["toolCount"])

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Contains(t, vars, "response")
	assert.Contains(t, vars, "traceMetadata")
	response := vars["response"].(map[string]interface{})
	assert.Equal(t, false, response["wasSynthesized"])
	assert.Equal(t, 0.9, response["confidence"])
}

func TestHandler_Execute_NoRunner(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, NewTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{Question: "q", DealID: "d", UserID: "u"})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeExternalService, commonerrors.Normalize(err).Code)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 180*time.Second, LoadConfig().Timeout)
}
