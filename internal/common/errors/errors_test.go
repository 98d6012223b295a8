package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"input invalid", NewInputInvalidError("question is required"), "SUPERVISOR_INPUT_INVALID", 0},
		{"specialist failed", NewSpecialistFailedError("financial_analyst", fmt.Errorf("502")), "SPECIALIST_FAILED", 2},
		{"malformed maps to failed", NewSpecialistMalformedError("knowledge_graph", "result is required"), "SPECIALIST_FAILED", 0},
		{"timeout never retried", NewSpecialistTimeoutError("financial_analyst", 45*time.Second), "SPECIALIST_TIMEOUT", 0},
		{"synthesis", NewSynthesisFailedError(fmt.Errorf("overloaded")), "SYNTHESIS_FAILED", 3},
		{"unmapped", &StandardError{Code: "SOMETHING_ELSE", Retryable: true}, "SOMETHING_ELSE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, b.Code)
			assert.Equal(t, tt.wantRetries, b.Retries)
			assert.Equal(t, string(tt.err.Code), b.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestToErrorVariables(t *testing.T) {
	b := ConvertToBPMNError(NewInputInvalidError("dealId is required"))
	vars := b.ToErrorVariables()

	assert.Equal(t, "SUPERVISOR_INPUT_INVALID", vars["errorCode"])
	assert.Equal(t, "dealId is required", vars["errorDetails"])
	assert.Equal(t, false, vars["retryable"])
	assert.Contains(t, vars, "timestamp")
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewInputInvalidError("bad"))
	got := Normalize(wrapped)
	assert.Equal(t, ErrCodeInputInvalid, got.Code)

	plain := Normalize(fmt.Errorf("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SPECIALIST", GetErrorCategory(ErrCodeSpecialistTimeout))
	assert.Equal(t, "SPECIALIST", GetErrorCategory(ErrCodeFallbackFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeEmbeddingUnavailable))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInputInvalid))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeSynthesisFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeSpecialistTimeout))
}
