package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/supervisor"
	"dealroom-supervisor/pkg/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/ai/generate":
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			text := "Hello! I can help with questions about this deal."
			if strings.Contains(req["prompt"].(string), "Specialist analyses") {
				text = "EBITDA was 12.4m, although the SPA and CIM disagree on adjustments."
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"text": text})
		case "/api/ai/embed":
			var req struct {
				Texts []string `json:"texts"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vectors := make([][]float32, len(req.Texts))
			for i := range req.Texts {
				vectors[i] = []float32{1, float32(i%7) + 1, float32(i%3) + 1}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vectors})
		case "/api/agents/financial-analyst":
			w.Write([]byte(`{"success": true, "result": {"summary": "EBITDA was 12.4m in FY2023.", "confidence": 0.9}}`))
		case "/api/agents/knowledge-graph":
			w.Write([]byte(`{"success": true, "result": {"summary": "The SPA and CIM disagree on adjustments.", "confidence": 0.7}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func createTestConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Provider = "gateway"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.Timeout = 5000
	cfg.LLM.Models.Simple = "haiku"
	cfg.LLM.Models.Medium = "sonnet"
	cfg.LLM.Models.Complex = "opus"
	cfg.Specialists.BaseURL = baseURL
	cfg.Supervisor.SpecialistTimeout = 5000
	cfg.Supervisor.SynthesisMaxTokens = 512
	cfg.Embedding.Provider = "gateway"
	cfg.Embedding.BaseURL = baseURL
	cfg.Embedding.Model = "embed-small"
	cfg.Embedding.Timeout = 5000
	return cfg
}

func TestBuild_RunsPipeline(t *testing.T) {
	server := gatewayServer(t)
	log := logger.NewTestLogger(t)

	stack, err := Build(context.Background(), createTestConfig(server.URL), nil, nil, log)
	require.NoError(t, err)
	assert.Nil(t, stack.Anchors)
	assert.Empty(t, stack.Catalog.Names())
	assert.Len(t, stack.Registry.Specialists, 3)

	result := stack.Supervisor.Run(context.Background(), supervisor.Query{
		Text:   "What is the EBITDA and is there a contradiction?",
		DealID: "deal-1",
		UserID: "user-1",
	})
	assert.True(t, result.Routing.IsParallel)
	assert.True(t, result.Response.WasSynthesized)
	assert.Equal(t, "EBITDA was 12.4m, although the SPA and CIM disagree on adjustments.", result.Response.Content)

	result = stack.Supervisor.Run(context.Background(), supervisor.Query{Text: "Hello", DealID: "deal-1", UserID: "user-1"})
	assert.Equal(t, []string{registry.General}, result.Routing.SelectedSpecialists)
	assert.Equal(t, "Hello! I can help with questions about this deal.", result.Response.Content)
	assert.True(t, result.Results[0].Stub)
}

func TestBuild_SemanticAnchorsPersistToRedis(t *testing.T) {
	server := gatewayServer(t)
	mr := miniredis.RunT(t)
	log := logger.NewTestLogger(t)

	cfg := createTestConfig(server.URL)
	cfg.Embedding.Enabled = true
	cfg.Database.Redis.Address = mr.Addr()
	cfg.Supervisor.AnchorCacheTTL = 3600

	stores, err := Connect(context.Background(), cfg, log)
	require.NoError(t, err)
	defer stores.Close()
	require.NotNil(t, stores.Redis)
	assert.Nil(t, stores.Postgres)
	assert.Nil(t, stores.Elasticsearch)

	stack, err := Build(context.Background(), cfg, stores, nil, log)
	require.NoError(t, err)
	require.NotNil(t, stack.Anchors)
	assert.False(t, stack.Anchors.Ready())

	require.NoError(t, stack.Anchors.Warm(context.Background()))
	assert.True(t, stack.Anchors.Ready())

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "supervisor:anchors:gateway/embed-small:"), keys[0])
	assert.Greater(t, mr.TTL(keys[0]), 59*time.Minute)
}

func TestBuild_EmbeddingMisconfiguredStaysRegexOnly(t *testing.T) {
	cfg := createTestConfig("http://gateway")
	cfg.Embedding.Enabled = true
	cfg.Embedding.Provider = "openai"

	stack, err := Build(context.Background(), cfg, nil, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Nil(t, stack.Anchors)
}

func TestBuild_Errors(t *testing.T) {
	cfg := createTestConfig("http://gateway")
	cfg.Supervisor.RegistryPath = "testdata/does-not-exist.yaml"
	_, err := Build(context.Background(), cfg, nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)

	cfg = createTestConfig("http://gateway")
	cfg.LLM.Provider = "cohere"
	_, err = Build(context.Background(), cfg, nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestConnect_NothingConfigured(t *testing.T) {
	stores, err := Connect(context.Background(), &config.Config{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Nil(t, stores.Postgres)
	assert.Nil(t, stores.Elasticsearch)
	assert.Nil(t, stores.Redis)
	stores.Close()
}

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "test op")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = RetryWithBackoff(func() error {
		attempts++
		return errors.New("still down")
	}, 2, time.Millisecond, logger.NewNoOpLogger(), "test op")
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, err.Error(), "test op failed after 2 attempts: still down")
}
