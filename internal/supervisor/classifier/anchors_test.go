package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	batchErr   error
	batchCalls int
	calls      int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"hello":           {1, 0, 0, 0},
		"what can you do": {0, 1, 0, 0},
		"what is revenue": {0, 0, 1, 0},
		"draft a memo":    {0, 0, 0, 1},
		"hey hey":         {0.9, 0.1, 0, 0},
		"revenue please":  {0.1, 0, 0.95, 0.1},
		"something odd":   {0.5, 0.5, 0.5, 0.5},
	}}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(texts) > 1 {
		f.batchCalls++
		if f.batchErr != nil {
			return nil, f.batchErr
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			v = []float32{0.25, 0.25, 0.25, 0.25}
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 4 }
func (f *fakeEmbedder) Name() string    { return "fake/test" }

func (f *fakeEmbedder) batches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

var testAnchors = map[Intent][]string{
	IntentGreeting: {"hello"},
	IntentMeta:     {"what can you do"},
	IntentFactual:  {"what is revenue"},
	IntentTask:     {"draft a memo"},
}

func TestAnchorCache_Nearest(t *testing.T) {
	cache := NewAnchorCache(newFakeEmbedder(), WithAnchors(testAnchors), WithAnchorLogger(&TestLogger{t: t}))
	assert.False(t, cache.Ready())

	intent, sim, err := cache.Nearest(context.Background(), "hey hey")
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, intent)
	assert.Greater(t, sim, 0.9)
	assert.True(t, cache.Ready())

	intent, _, err = cache.Nearest(context.Background(), "revenue please")
	require.NoError(t, err)
	assert.Equal(t, IntentFactual, intent)

	_, sim, err = cache.Nearest(context.Background(), "something odd")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sim, 0.01)
}

func TestAnchorCache_BuildsOnceUnderConcurrency(t *testing.T) {
	emb := newFakeEmbedder()
	cache := NewAnchorCache(emb, WithAnchors(testAnchors))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cache.Nearest(context.Background(), "hey hey")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, emb.batches())
}

func TestAnchorCache_FailedBuildIsRetried(t *testing.T) {
	emb := newFakeEmbedder()
	emb.batchErr = errors.New("503 from embedding service")
	cache := NewAnchorCache(emb, WithAnchors(testAnchors))

	_, _, err := cache.Nearest(context.Background(), "hey hey")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.False(t, cache.Ready())

	emb.mu.Lock()
	emb.batchErr = nil
	emb.mu.Unlock()

	intent, _, err := cache.Nearest(context.Background(), "hey hey")
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, intent)
	assert.Equal(t, 2, emb.batches())
}

func TestAnchorCache_NoEmbedder(t *testing.T) {
	_, _, err := NewAnchorCache(nil).Nearest(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestAnchorCache_PersistsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rdb.Close()

	first := newFakeEmbedder()
	cache := NewAnchorCache(first, WithAnchors(testAnchors), WithAnchorStore(rdb, 0))
	require.NoError(t, cache.Warm(context.Background()))
	assert.Equal(t, 1, first.batches())

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "supervisor:anchors:fake/test:"))

	// A restarted process with the same model reads the stored vectors.
	second := newFakeEmbedder()
	second.batchErr = errors.New("should not re-embed anchors")
	restarted := NewAnchorCache(second, WithAnchors(testAnchors), WithAnchorStore(rdb, 0))

	intent, _, err := restarted.Nearest(context.Background(), "hey hey")
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, intent)
	assert.Equal(t, 0, second.batches())
}

func TestAnchorCache_StoreKeyTracksAnchorSet(t *testing.T) {
	emb := newFakeEmbedder()
	a := NewAnchorCache(emb, WithAnchors(testAnchors))
	b := NewAnchorCache(emb, WithAnchors(map[Intent][]string{IntentGreeting: {"hello", "hi"}}))
	assert.NotEqual(t, a.storeKey(), b.storeKey())
	assert.Equal(t, a.storeKey(), NewAnchorCache(emb, WithAnchors(testAnchors)).storeKey())
}

func TestDefaultAnchors_Sizes(t *testing.T) {
	for _, intent := range anchorOrder {
		n := len(DefaultAnchors[intent])
		assert.GreaterOrEqual(t, n, 12, string(intent))
		assert.LessOrEqual(t, n, 14, string(intent))
	}
}

func TestClassify_WithAnchorCache(t *testing.T) {
	cache := NewAnchorCache(newFakeEmbedder(), WithAnchors(testAnchors))
	c := New(createTestConfig(), cache, &TestLogger{t: t})

	res := c.Classify(context.Background(), "hey hey")
	assert.Equal(t, IntentGreeting, res.Intent)
	assert.Equal(t, MethodSemantic, res.Method)
}
