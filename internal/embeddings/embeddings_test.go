package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealroom-supervisor/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])

		w.Header().Set("Content-Type", "application/json")
		// out of order on purpose
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	e := NewOpenAIEmbedder("test-key", server.URL+"/v1", "")
	assert.Equal(t, "openai/text-embedding-3-small", e.Name())
	assert.Equal(t, 1536, e.Dimensions())

	vecs, err := e.Embed(context.Background(), []string{"hello", "what is the EBITDA"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestGatewayEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/embed", r.URL.Path)

		var req gatewayEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		out := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			out[i] = []float32{float32(i), 1, 0}
		}
		json.NewEncoder(w).Encode(gatewayEmbedResponse{Embeddings: out})
	}))
	defer server.Close()

	e, err := NewGatewayEmbedder(server.URL, "", "bge-small", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Dimensions())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, e.Dimensions())

	fn := ToChromemFunc(e)
	v, err := fn(context.Background(), "single")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, v)
}

func TestGatewayEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[[1,2]]}`))
	}))
	defer server.Close()

	e, err := NewGatewayEmbedder(server.URL, "", "m", 5*time.Second)
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = NewEmbedder(config.EmbeddingConfig{Enabled: true, Provider: "openai"})
	assert.Error(t, err)

	_, err = NewEmbedder(config.EmbeddingConfig{Enabled: true, Provider: "cohere"})
	assert.Error(t, err)

	e, err = NewEmbedder(config.EmbeddingConfig{Enabled: true, Provider: "gateway", BaseURL: "http://gw", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "gateway/m", e.Name())
}
