// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealroom-supervisor/internal/bootstrap"
	"dealroom-supervisor/internal/common/camunda"
	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/common/observability"

	rs "dealroom-supervisor/internal/workers/ai-conversation/run-supervisor"
)

const processID = "dealroom-query"

type runSupervisorLoggerAdapter struct {
	logger.Logger
}

func (a *runSupervisorLoggerAdapter) With(fields map[string]interface{}) rs.Logger {
	return &runSupervisorLoggerAdapter{a.Logger.With(fields)}
}

// TestFullE2E drives a question through a real Zeebe broker, the specialist
// service and the configured LLM. It runs only when E2E_ENABLED is set.
func TestFullE2E(t *testing.T) {
	if os.Getenv("E2E_ENABLED") == "" {
		t.Skip("set E2E_ENABLED=1 with Zeebe, the specialist service and LLM credentials available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)

	zapLog, _ := zap.NewDevelopment()
	log := logger.NewZapAdapter(zapLog)

	t.Log("🚀 Starting E2E test with real services...")

	zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	require.NoError(t, err, "❌ Zeebe connection failed")
	defer zeebe.Close()
	require.NoError(t, zeebe.HealthCheck(ctx), "❌ Zeebe topology request failed")
	t.Log("✅ Zeebe connected")

	stores, err := bootstrap.Connect(ctx, cfg, log)
	require.NoError(t, err, "❌ data stores unavailable")
	defer stores.Close()
	assertStoresReachable(t, ctx, stores)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	stack, err := bootstrap.Build(ctx, cfg, stores, obs, log)
	require.NoError(t, err)

	deployProcess(t, ctx, zeebe)

	wcfg := config.GetWorkerConfig(cfg, rs.TaskType)
	handler := rs.NewHandler(&rs.Config{Timeout: config.GetDuration(wcfg.Timeout)}, stack.Supervisor, &runSupervisorLoggerAdapter{log}).WithObservability(obs)
	worker := camunda.StartWorker(zeebe.GetClient(), rs.TaskType, wcfg, handler, zapLog)
	require.NotNil(t, worker, "run-supervisor worker is disabled in config")
	defer worker.Stop()

	cases := []struct {
		name        string
		question    string
		specialists []string
	}{
		{"greeting", "Hello there", []string{"general"}},
		{"financial", "What was the EBITDA margin in FY2023?", []string{"financial_analyst"}},
		{"parallel", "Does the revenue in the CIM contradict the management accounts?", []string{"financial_analyst", "knowledge_graph"}},
	}

	dealID := envOr("E2E_DEAL_ID", "e2e-deal")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := runProcess(t, ctx, zeebe, map[string]interface{}{
				"question": tc.question,
				"dealId":   dealID,
				"userId":   "e2e-user",
			})

			assert.NotEmpty(t, out.Response.Content)
			assert.Equal(t, tc.specialists, out.Response.Specialists)
			assert.GreaterOrEqual(t, out.Response.Confidence, 0.0)
			assert.LessOrEqual(t, out.Response.Confidence, 1.0)
			assert.NotEmpty(t, out.TraceMetadata["runId"])
			t.Logf("✅ %s answered with confidence %.2f", tc.name, out.Response.Confidence)
		})
	}
}

func assertStoresReachable(t *testing.T, ctx context.Context, stores *bootstrap.Stores) {
	t.Helper()
	if stores.Postgres != nil {
		assert.NoError(t, stores.Postgres.Ping(ctx), "❌ PostgreSQL ping failed")
		t.Log("✅ PostgreSQL connected")
	}
	if stores.Elasticsearch != nil {
		assert.NoError(t, stores.Elasticsearch.Ping(ctx), "❌ Elasticsearch ping failed")
		t.Log("✅ Elasticsearch connected")
	}
	if stores.Redis != nil {
		assert.NoError(t, stores.Redis.Ping(ctx), "❌ Redis ping failed")
		t.Log("✅ Redis connected")
	}
}

func deployProcess(t *testing.T, ctx context.Context, zeebe *camunda.Client) {
	t.Helper()

	var path string
	for _, dir := range []string{"bpmn", "../bpmn", "../../bpmn"} {
		candidate := filepath.Join(dir, processID+".bpmn")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	require.NotEmpty(t, path, "BPMN file %s.bpmn not found", processID)

	_, err := zeebe.GetClient().NewDeployResourceCommand().AddResourceFile(path).Send(ctx)
	require.NoError(t, err, "❌ deploy %s", path)
	t.Logf("✅ Deployed: %s", path)
}

func runProcess(t *testing.T, ctx context.Context, zeebe *camunda.Client, vars map[string]interface{}) rs.Output {
	t.Helper()

	cmd, err := zeebe.GetClient().NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(vars)
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 4*time.Minute)
	defer cancel()

	resp, err := cmd.WithResult().Send(runCtx)
	require.NoError(t, err)

	var out rs.Output
	require.NoError(t, json.Unmarshal([]byte(resp.GetVariables()), &out))
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
