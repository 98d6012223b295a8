package router

import (
	"testing"

	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factual() classifier.Result {
	return classifier.Result{Intent: classifier.IntentFactual, Complexity: classifier.ComplexityMedium}
}

func TestRoute_ParallelOnMultipleMatches(t *testing.T) {
	r := New(registry.Default())

	d := r.Route(factual(), "Is there a contradiction in the EBITDA figures?")
	assert.Equal(t, []string{registry.FinancialAnalyst, registry.KnowledgeGraph}, d.SelectedSpecialists)
	assert.True(t, d.IsParallel)
	assert.Equal(t, []string{"ebitda"}, d.MatchedKeywords[registry.FinancialAnalyst])
	assert.Equal(t, []string{"contradiction"}, d.MatchedKeywords[registry.KnowledgeGraph])
	assert.Contains(t, d.Rationale, "financial_analyst matched [ebitda]")
	assert.Contains(t, d.Rationale, "knowledge_graph matched [contradiction]")
}

func TestRoute_SingleMatch(t *testing.T) {
	d := New(nil).Route(factual(), "What was revenue and gross profit last year")
	assert.Equal(t, []string{registry.FinancialAnalyst}, d.SelectedSpecialists)
	assert.False(t, d.IsParallel)
	assert.ElementsMatch(t, []string{"revenue", "gross profit", "profit"}, d.MatchedKeywords[registry.FinancialAnalyst])
}

func TestRoute_FallbackToGeneral(t *testing.T) {
	d := New(registry.Default()).Route(factual(), "Where is the headquarters located")
	assert.Equal(t, []string{registry.General}, d.SelectedSpecialists)
	assert.False(t, d.IsParallel)
	assert.Empty(t, d.MatchedKeywords)
}

func TestRoute_IntentAffinity(t *testing.T) {
	reg := registry.Default()
	reg.Affinity["task"] = registry.KnowledgeGraph

	d := New(reg).Route(classifier.Result{Intent: classifier.IntentTask}, "Draft a memo for the committee")
	assert.Equal(t, []string{registry.KnowledgeGraph}, d.SelectedSpecialists)
	assert.False(t, d.IsParallel)
	assert.Contains(t, d.Rationale, "task intent")
}

func TestRoute_EmptyQuery(t *testing.T) {
	reg := registry.Default()
	reg.Affinity["factual"] = registry.FinancialAnalyst

	for _, q := range []string{"", "   ", "\n\t"} {
		d := New(reg).Route(factual(), q)
		require.Equal(t, []string{registry.General}, d.SelectedSpecialists)
		assert.False(t, d.IsParallel)
		assert.Empty(t, d.MatchedKeywords)
	}
}

func TestRoute_WholeWordCaseInsensitive(t *testing.T) {
	r := New(registry.Default())

	tests := []struct {
		query string
		want  string
	}{
		{"EBITDA?", registry.FinancialAnalyst},
		{"Show the P&L", registry.FinancialAnalyst},
		{"Does the CASH FLOW cover debt service", registry.FinancialAnalyst},
		{"Which entity owns the IP", registry.KnowledgeGraph},
		{"marginal notes on the deck", registry.General},
		{"Is there any entitlement issue", registry.General},
		{"cashflow", registry.General},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d := r.Route(factual(), tt.query)
			assert.Equal(t, []string{tt.want}, d.SelectedSpecialists)
		})
	}
}

func TestRoute_Deterministic(t *testing.T) {
	r := New(registry.Default())
	q := "Revenue contradiction between subsidiary reports"
	first := r.Route(factual(), q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Route(factual(), q))
	}
}
