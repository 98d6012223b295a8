package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dealroom-supervisor/internal/embeddings"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/singleflight"
)

const (
	anchorCollection = "intent-anchors"
	anchorKeyPrefix  = "supervisor:anchors:"
)

var ErrEmbeddingUnavailable = errors.New("EMBEDDING_UNAVAILABLE")

// DefaultAnchors are the canonical examples per intent.
var DefaultAnchors = map[Intent][]string{
	IntentGreeting: {
		"hi", "hello", "hey there", "good morning", "good afternoon", "hello, how are you",
		"thanks", "thank you very much", "thanks for the help", "cheers", "bye", "see you later",
		"nice to meet you",
	},
	IntentMeta: {
		"what can you do", "who are you", "how do you work", "what are your capabilities",
		"summarize our conversation", "what did I ask you earlier", "repeat your last answer",
		"what did we discuss so far", "can you explain your previous answer",
		"how should I use this assistant", "what sources do you have access to",
		"are you an AI", "clear the chat history",
	},
	IntentFactual: {
		"what was the revenue last year", "what is the EBITDA margin", "who are the shareholders",
		"when does the lease expire", "how many employees does the company have",
		"what is the customer churn rate", "who is the CEO", "where is the headquarters",
		"what are the key risks", "is there any pending litigation", "what does the contract say about termination",
		"how much debt does the company carry", "which customers are the largest",
		"what is the purchase price",
	},
	IntentTask: {
		"summarize the deal structure", "draft an investment memo", "create a list of open IRL items",
		"compare revenue across the last three years", "prepare a due diligence checklist",
		"write an email to the seller asking for the audited accounts", "extract all change of control clauses",
		"generate a summary of the financial model", "build a table of key contracts",
		"add a Q&A question about customer concentration", "outline the main risks for the IC memo",
		"export the findings to Excel", "analyze the working capital trend",
	},
}

var anchorOrder = []Intent{IntentGreeting, IntentMeta, IntentFactual, IntentTask}

// AnchorStore persists embedded anchors between restarts.
type AnchorStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type anchorVector struct {
	Intent Intent    `json:"intent"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

type anchorIndex struct {
	collection *chromem.Collection
}

// AnchorCache lazily embeds the anchor examples once per process and answers
// nearest-anchor queries. A failed build is not kept, so the next query
// tries again.
type AnchorCache struct {
	embedder embeddings.Embedder
	anchors  map[Intent][]string
	store    AnchorStore
	ttl      time.Duration
	logger   Logger

	index atomic.Pointer[anchorIndex]
	group singleflight.Group
}

type AnchorOption func(*AnchorCache)

func WithAnchors(anchors map[Intent][]string) AnchorOption {
	return func(a *AnchorCache) { a.anchors = anchors }
}

// WithAnchorStore enables the persisted second-level cache.
func WithAnchorStore(store AnchorStore, ttl time.Duration) AnchorOption {
	return func(a *AnchorCache) {
		a.store = store
		a.ttl = ttl
	}
}

func WithAnchorLogger(log Logger) AnchorOption {
	return func(a *AnchorCache) { a.logger = log }
}

func NewAnchorCache(embedder embeddings.Embedder, opts ...AnchorOption) *AnchorCache {
	a := &AnchorCache{
		embedder: embedder,
		anchors:  DefaultAnchors,
		ttl:      7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Nearest embeds text and returns the intent of the most similar anchor.
func (a *AnchorCache) Nearest(ctx context.Context, text string) (Intent, float64, error) {
	idx, err := a.ensure(ctx)
	if err != nil {
		return "", 0, err
	}

	results, err := idx.collection.Query(ctx, text, 1, nil, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: query anchors: %v", ErrEmbeddingUnavailable, err)
	}
	if len(results) == 0 {
		return "", 0, fmt.Errorf("%w: no anchors indexed", ErrEmbeddingUnavailable)
	}

	best := results[0]
	return Intent(best.Metadata["intent"]), clamp01(float64(best.Similarity)), nil
}

// Ready reports whether the anchors have been built.
func (a *AnchorCache) Ready() bool {
	return a.index.Load() != nil
}

// Warm builds the anchors ahead of the first query.
func (a *AnchorCache) Warm(ctx context.Context) error {
	_, err := a.ensure(ctx)
	return err
}

func (a *AnchorCache) ensure(ctx context.Context) (*anchorIndex, error) {
	if idx := a.index.Load(); idx != nil {
		return idx, nil
	}
	if a.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingUnavailable)
	}

	v, err, _ := a.group.Do("anchors", func() (interface{}, error) {
		if idx := a.index.Load(); idx != nil {
			return idx, nil
		}
		idx, err := a.build(ctx)
		if err != nil {
			return nil, err
		}
		a.index.Store(idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*anchorIndex), nil
}

func (a *AnchorCache) build(ctx context.Context) (*anchorIndex, error) {
	start := time.Now()
	key := a.storeKey()

	vectors, fromStore := a.loadStored(ctx, key)
	if !fromStore {
		var err error
		vectors, err = a.embedAnchors(ctx)
		if err != nil {
			return nil, err
		}
		a.saveStored(ctx, key, vectors)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(anchorCollection, nil, embeddings.ToChromemFunc(a.embedder))
	if err != nil {
		return nil, fmt.Errorf("create anchor collection: %w", err)
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d", v.Intent, i),
			Content:   v.Text,
			Metadata:  map[string]string{"intent": string(v.Intent)},
			Embedding: v.Vector,
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("index anchors: %w", err)
	}

	a.debug("intent anchors ready", map[string]interface{}{
		"anchors":   len(docs),
		"fromStore": fromStore,
		"embedder":  a.embedder.Name(),
		"duration":  time.Since(start).String(),
	})
	return &anchorIndex{collection: col}, nil
}

func (a *AnchorCache) embedAnchors(ctx context.Context) ([]anchorVector, error) {
	var out []anchorVector
	var texts []string
	for _, intent := range anchorOrder {
		for _, text := range a.anchors[intent] {
			out = append(out, anchorVector{Intent: intent, Text: text})
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no anchor examples", ErrEmbeddingUnavailable)
	}

	vecs, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d anchors", ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	for i := range out {
		out[i].Vector = vecs[i]
	}
	return out, nil
}

func (a *AnchorCache) loadStored(ctx context.Context, key string) ([]anchorVector, bool) {
	if a.store == nil {
		return nil, false
	}
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var vectors []anchorVector
	if err := json.Unmarshal(data, &vectors); err != nil || len(vectors) == 0 {
		a.warn("discarding unreadable stored anchors", map[string]interface{}{"key": key})
		return nil, false
	}
	return vectors, true
}

func (a *AnchorCache) saveStored(ctx context.Context, key string, vectors []anchorVector) {
	if a.store == nil {
		return
	}
	data, err := json.Marshal(vectors)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, key, data, a.ttl); err != nil {
		a.warn("failed to persist anchors", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// storeKey identifies the embedder and the exact anchor set.
func (a *AnchorCache) storeKey() string {
	h := sha256.New()
	for _, intent := range anchorOrder {
		for _, text := range a.anchors[intent] {
			h.Write([]byte(string(intent) + "\x00" + text + "\n"))
		}
	}
	name := strings.ReplaceAll(a.embedder.Name(), " ", "_")
	return anchorKeyPrefix + name + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *AnchorCache) debug(msg string, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, fields)
	}
}

func (a *AnchorCache) warn(msg string, fields map[string]interface{}) {
	if a.logger != nil {
		a.logger.Warn(msg, fields)
	}
}
