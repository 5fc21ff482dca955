package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/activities"
	"github.com/claritymed/regassist/internal/config"
	"github.com/claritymed/regassist/internal/embeddings"
	"github.com/claritymed/regassist/internal/httpapi"
	"github.com/claritymed/regassist/internal/knowledge"
	"github.com/claritymed/regassist/internal/oracle"
	"github.com/claritymed/regassist/internal/streaming"
	"github.com/claritymed/regassist/internal/workflows"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	features, err := config.Load()
	if err != nil {
		logger.Warn("Config file unavailable, using defaults", zap.Error(err))
		features = nil
	}
	supCfg := config.SupervisorFromEnvOrDefaults(features)
	gapCfg := config.GapFromEnvOrDefaults(features)
	if features != nil && features.Streaming.RingCapacity > 0 {
		streaming.Configure(features.Streaming.RingCapacity)
	}

	// Knowledge stack: embedding client with tiered cache, one RAG chain per
	// guidance domain.
	kn := config.KnowledgeConfig{}
	if features != nil {
		kn = features.Knowledge
	}
	embedCfg := embeddings.Config{
		BaseURL:      envOr("EMBEDDING_BASE_URL", kn.EmbeddingBaseURL),
		DefaultModel: envOr("EMBEDDING_MODEL", kn.EmbeddingModel),
		Chunking:     embeddings.DefaultChunkingConfig(),
	}
	var cache embeddings.Cache
	if addr := envOr("REDIS_ADDR", kn.RedisAddr); addr != "" {
		rc, err := embeddings.NewRedisCache(addr)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing with LRU only", zap.Error(err))
		} else {
			cache = rc
			logger.Info("Embedding cache backed by Redis", zap.String("addr", addr))
		}
	}
	embedder := embeddings.NewService(embedCfg, cache)

	llmBase := envOr("LLM_BASE_URL", kn.LLMBaseURL)
	llmModel := envOr("LLM_MODEL", kn.LLMModel)
	apiKey := os.Getenv("LLM_API_KEY")
	corpusDir := envOr("CORPUS_DIR", kn.CorpusDir)
	if corpusDir == "" {
		corpusDir = "./corpus"
	}

	builders := map[string]knowledge.BuildFunc{}
	for _, domain := range []string{knowledge.DomainCybersecurity, knowledge.DomainRegulatory} {
		builders[domain] = knowledge.NewRAGChainBuilder(knowledge.ChainConfig{
			Domain:     domain,
			CorpusDir:  filepath.Join(corpusDir, domain),
			TopK:       kn.TopK,
			LLMBaseURL: llmBase,
			LLMModel:   llmModel,
			APIKey:     apiKey,
			EmbedModel: embedCfg.DefaultModel,
		}, embedder, logger)
	}
	km := knowledge.NewManager(builders, logger)

	// Index both corpora before the first request needs them. Failures
	// surface as degraded specialist answers and rebuild on the next use.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := km.Prewarm(ctx); err != nil {
			logger.Warn("Knowledge chain prewarm failed", zap.Error(err))
		}
	}()

	decider := oracle.NewClient(oracle.Config{
		BaseURL: envOr("ORACLE_BASE_URL", llmBase),
		Model:   envOr("ORACLE_MODEL", llmModel),
		APIKey:  apiKey,
		Timeout: supCfg.OracleTimeout(),
	}, logger)

	acts := activities.NewActivities(km, decider, gapCfg, logger)

	temporalHost := envOr("TEMPORAL_HOST", "localhost:7233")
	tc, err := client.Dial(client.Options{
		HostPort:  temporalHost,
		Namespace: envOr("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.String("host", temporalHost), zap.Error(err))
	}
	defer tc.Close()

	w := worker.New(tc, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ComplianceWorkflow)
	w.RegisterWorkflow(workflows.ComplianceWorkflowWithConfig)
	w.RegisterActivity(acts.SupervisorDecide)
	w.RegisterActivity(acts.ExecuteSpecialist)
	w.RegisterActivity(activities.EmitTaskUpdate)
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start Temporal worker", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("Temporal worker started",
		zap.String("task_queue", workflows.TaskQueue),
		zap.Int("max_specialist_messages", supCfg.MaxSpecialistMessages),
		zap.Int("max_engine_steps", supCfg.MaxEngineSteps),
	)

	// HTTP surface: task submission, streaming, metrics, health.
	mux := http.NewServeMux()
	wfCfg := workflows.ComplianceConfig{
		MaxSpecialistMessages: supCfg.MaxSpecialistMessages,
		MaxEngineSteps:        supCfg.MaxEngineSteps,
		OracleTimeoutSeconds:  supCfg.OracleTimeoutSeconds,
	}
	httpapi.NewTaskHandler(tc, workflows.TaskQueue, wfCfg, logger).RegisterRoutes(mux)
	httpapi.NewStreamingHandler(streaming.Get(), logger).
		WithCanceller(func(ctx context.Context, workflowID string) error {
			return tc.CancelWorkflow(ctx, workflowID, "")
		}).
		RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpPort := envOr("HTTP_PORT", "8080")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", httpPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("port", httpPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
}
