// Package bootstrap assembles the supervisor from configuration. The worker
// manager and the developer CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"dealroom-supervisor/internal/agent"
	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/database"
	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/common/observability"
	"dealroom-supervisor/internal/embeddings"
	"dealroom-supervisor/internal/llm"
	"dealroom-supervisor/internal/supervisor"
	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/internal/supervisor/router"
	"dealroom-supervisor/internal/supervisor/specialist"
	"dealroom-supervisor/internal/supervisor/synthesis"
	"dealroom-supervisor/internal/tools"
	"dealroom-supervisor/pkg/registry"
)

// Stores holds the optional data stores. A nil field means the store is not
// configured.
type Stores struct {
	Postgres      *database.PostgresClient
	Elasticsearch *database.ElasticsearchClient
	Redis         *database.RedisClient
}

// Close releases every open store.
func (s *Stores) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}

// Stack is the assembled pipeline plus the parts the host checks for
// readiness.
type Stack struct {
	Supervisor *supervisor.Supervisor
	Registry   *registry.SpecialistRegistry
	Catalog    *tools.Catalog
	Anchors    *classifier.AnchorCache
}

// Connect opens the stores enabled in cfg, retrying each with backoff.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stores, error) {
	stores := &Stores{}

	if cfg.Database.Postgres.Enabled() {
		err := RetryWithBackoff(func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			stores.Postgres = pg
			return nil
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected successfully", nil)
	}

	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		err := RetryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			stores.Elasticsearch = es
			return nil
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			stores.Close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	if cfg.Database.Redis.Address != "" {
		err := RetryWithBackoff(func() error {
			rc, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				rc.Close()
				return err
			}
			stores.Redis = rc
			return nil
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			stores.Close()
			return nil, err
		}
		log.Info("Redis connected successfully", nil)
	}

	return stores, nil
}

// Build wires classifier, router, executor and synthesizer into a
// Supervisor. Embedding failures leave the classifier regex-only.
func Build(ctx context.Context, cfg *config.Config, stores *Stores, obs *observability.Observability, log logger.Logger) (*Stack, error) {
	if stores == nil {
		stores = &Stores{}
	}

	reg, err := registry.LoadOrDefault(cfg.Supervisor.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load specialist registry: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	// typed nil pointers must not reach the tool interfaces
	var db tools.Querier
	if stores.Postgres != nil {
		db = stores.Postgres
	}
	var es tools.Searcher
	if stores.Elasticsearch != nil {
		es = stores.Elasticsearch
	}
	catalog := tools.NewCatalog(db, es, tools.Options{
		ChunkIndex:    cfg.Database.Elasticsearch.ChunkIndex,
		DocumentIndex: cfg.Database.Elasticsearch.DocumentIndex,
		MaxHits:       cfg.Database.Elasticsearch.MaxSearchHits,
	})

	toolAgent := agent.New(provider, catalog, log, agent.WithDefaultModel(cfg.LLM.Models.Medium))

	anchors := newAnchorCache(cfg, stores, log)
	var semantic classifier.Semantic
	if anchors != nil {
		semantic = anchors
	}

	cls := classifier.New(classifier.Config{
		SemanticThreshold: cfg.Supervisor.SemanticThreshold,
		SimpleWordCeiling: cfg.Supervisor.SimpleWordCeiling,
		Models: classifier.TierModels{
			Simple:  cfg.LLM.Models.Simple,
			Medium:  cfg.LLM.Models.Medium,
			Complex: cfg.LLM.Models.Complex,
		},
		AllTools: catalog.Names(),
	}, semantic, log)

	exec := specialist.NewExecutor(specialist.Config{
		BaseURL: cfg.Specialists.BaseURL,
		APIKey:  cfg.Specialists.APIKey,
		Timeout: config.GetDuration(cfg.Supervisor.SpecialistTimeout),
	}, reg, toolAgent, log)

	llmCfg := cfg.LLM
	synth := synthesis.New(synthesis.Config{
		Model:       cfg.LLM.Models.Medium,
		MaxTokens:   cfg.Supervisor.SynthesisMaxTokens,
		Temperature: cfg.Supervisor.SynthesisTemperature,
		Timeout:     config.GetDuration(cfg.LLM.Timeout),
	}, reg, func() (llm.Provider, error) {
		return llm.NewProvider(context.Background(), llmCfg)
	}, log)

	log.Info("supervisor assembled", map[string]interface{}{
		"specialists":  len(reg.Specialists),
		"tools":        catalog.Names(),
		"llmProvider":  provider.Name(),
		"semantic":     anchors != nil,
		"registryPath": cfg.Supervisor.RegistryPath,
	})

	return &Stack{
		Supervisor: supervisor.New(cls, router.New(reg), exec, synth, obs, log),
		Registry:   reg,
		Catalog:    catalog,
		Anchors:    anchors,
	}, nil
}

func newAnchorCache(cfg *config.Config, stores *Stores, log logger.Logger) *classifier.AnchorCache {
	embedder, err := embeddings.NewEmbedder(cfg.Embedding)
	if err != nil {
		log.Warn("embeddings unavailable, classifier is regex-only", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if embedder == nil {
		return nil
	}

	opts := []classifier.AnchorOption{classifier.WithAnchorLogger(log)}
	if stores.Redis != nil {
		ttl := time.Duration(cfg.Supervisor.AnchorCacheTTL) * time.Second
		opts = append(opts, classifier.WithAnchorStore(stores.Redis, ttl))
	}
	return classifier.NewAnchorCache(embedder, opts...)
}

// RetryWithBackoff attempts operation up to maxRetries times, doubling the
// delay after each failure.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
