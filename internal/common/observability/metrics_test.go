package observability

import (
	"context"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability_SpansAndMetrics(t *testing.T) {
	registry := promclient.NewRegistry()
	recorder := tracetest.NewSpanRecorder()

	obs := New("supervisor-test", WithRegisterer(registry), WithSpanProcessor(recorder))
	defer obs.Shutdown()

	ctx, span := obs.StartSpan(context.Background(), "supervisor.classify", attribute.String("intent", "factual"))
	obs.RecordRun(ctx, "factual", "medium", 2)
	obs.RecordJobProcessed(ctx, "success")
	obs.RecordJobDuration(ctx, 150*time.Millisecond, "success")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "supervisor.classify", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("intent", "factual"))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
		assert.NotContains(t, f.GetName(), ".", "metric names must be valid for legacy scrapers")
	}
	assert.Contains(t, names, "supervisor_runs_total")
	assert.Contains(t, names, "jobs_processed_total")
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	var obs Observability
	assert.NotPanics(t, func() {
		ctx, span := obs.StartSpan(context.Background(), "noop")
		obs.RecordRun(ctx, "greeting", "simple", 1)
		span.End()
		obs.Shutdown()
	})
}
