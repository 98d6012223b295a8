// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealroom-supervisor/internal/bootstrap"
	"dealroom-supervisor/internal/common/camunda"
	"dealroom-supervisor/internal/common/config"
	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/common/observability"

	rs "dealroom-supervisor/internal/workers/ai-conversation/run-supervisor"
)

func main() {
	zapLog := logger.New("info", "console")
	defer func() { _ = zapLog.Sync() }()

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = bootstrap.RetryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init optional stores ---
	stores, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("data stores failed after retries", zap.Error(err))
	}
	defer stores.Close()

	stack, err := bootstrap.Build(ctx, cfg, stores, obs, log)
	if err != nil {
		zapLog.Fatal("supervisor assembly failed", zap.Error(err))
	}

	if stack.Anchors != nil {
		go func() {
			warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := stack.Anchors.Warm(warmCtx); err != nil {
				log.Warn("intent anchors not warmed, first query will retry", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// --- Register workers ---
	var workers []*camunda.CamundaWorker
	wcfg := config.GetWorkerConfig(cfg, rs.TaskType)
	handler := rs.NewHandler(
		&rs.Config{Timeout: config.GetDuration(wcfg.Timeout)},
		stack.Supervisor,
		&runSupervisorLoggerAdapter{log},
	).WithObservability(obs)
	if w := camunda.StartWorker(zeebe.GetClient(), rs.TaskType, wcfg, handler, zapLog); w != nil {
		workers = append(workers, w)
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newRouter(zeebe, stores, stack),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newRouter(zeebe *camunda.Client, stores *bootstrap.Stores, stack *bootstrap.Stack) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		check := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}

		check("zeebe", zeebe.HealthCheck(ctx))
		if stores.Postgres != nil {
			check("postgres", stores.Postgres.Ping(ctx))
		}
		if stores.Elasticsearch != nil {
			check("elasticsearch", stores.Elasticsearch.Ping(ctx))
		}
		if stores.Redis != nil {
			check("redis", stores.Redis.Ping(ctx))
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, map[string]interface{}{
			"status":       status,
			"checks":       checks,
			"anchorsReady": stack.Anchors != nil && stack.Anchors.Ready(),
			"tools":        stack.Catalog.Names(),
			"time":         time.Now().Format(time.RFC3339),
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeStatus(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Logger adapter for workers that have their own Logger interfaces
type runSupervisorLoggerAdapter struct {
	logger.Logger
}

func (a *runSupervisorLoggerAdapter) With(fields map[string]interface{}) rs.Logger {
	return &runSupervisorLoggerAdapter{a.Logger.With(fields)}
}
