package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/config"
	"github.com/kailas-cloud/sentinel/internal/db"
	dbRedis "github.com/kailas-cloud/sentinel/internal/db/redis"
	"github.com/kailas-cloud/sentinel/internal/domain"
	logpkg "github.com/kailas-cloud/sentinel/internal/logger"
	"github.com/kailas-cloud/sentinel/internal/metrics"
	budgetrepo "github.com/kailas-cloud/sentinel/internal/repository/budget"
	"github.com/kailas-cloud/sentinel/internal/repository/corpus"
	"github.com/kailas-cloud/sentinel/internal/repository/decisioncache"
	"github.com/kailas-cloud/sentinel/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/sentinel/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/sentinel/internal/transport/openai"
	admissionuc "github.com/kailas-cloud/sentinel/internal/usecase/admission"
	curationuc "github.com/kailas-cloud/sentinel/internal/usecase/curation"
	detectoruc "github.com/kailas-cloud/sentinel/internal/usecase/detector"
	embeddinguc "github.com/kailas-cloud/sentinel/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/sentinel/internal/usecase/health"
	usageuc "github.com/kailas-cloud/sentinel/internal/usecase/usage"
	"github.com/kailas-cloud/sentinel/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting sentinel API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index_version", cfg.IndexVersion()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.Register()

	// Single BudgetTracker shared by the embedder chain and the usage service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	gate := admissionuc.New(cfg.Pipeline.Admission, logger)

	embedder := buildEmbedder(cfg, store, gate, budgetChecker, logger)
	logger.Info("Embedder chain created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	corpusRepo := corpus.New(store, cfg.Pipeline.CorpusVersion, cfg.Embedding.Dimensions, cfg.Pipeline.MaxTopK)
	if err := corpusRepo.EnsureIndex(ctx); err != nil {
		logger.Warn("Corpus index not ready yet", zap.Error(err))
	}

	decisionCache := decisioncache.New(
		cfg.Pipeline.Cache.Capacity,
		time.Duration(cfg.Pipeline.Cache.TTLSeconds)*time.Second,
		metrics.DecisionCacheTotal,
	)

	detectorSvc := detectoruc.New(
		embedder, corpusRepo, decisionCache,
		indexGate{gate: gate},
		detectoruc.Config{
			TopK:              cfg.Pipeline.TopK,
			Tau:               cfg.Pipeline.Tau,
			MaxInputRunes:     cfg.Pipeline.MaxInputRunes,
			TopMatchesInReply: cfg.Pipeline.TopMatchesInReply,
			IndexVersion:      cfg.IndexVersion(),
		},
		logger,
	)
	curationSvc := curationuc.New(embedder, corpusRepo, cfg.Pipeline.MaxInputRunes, logger)

	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(cfg.Embedding.Provider, cfg.Embedding.Model, budgetReader)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), corpusRepo)

	server := chiTransport.NewServer(detectorSvc, curationSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Retrying (admission per attempt) -> Instrumented (budget) -> Cached.
// The vector cache is outermost so hits skip admission, retries, and budget.
func buildEmbedder(
	cfg config.Config,
	store db.Store,
	gate *admissionuc.Gate,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = embeddinguc.NewRetryingEmbedder(
		base, embedderGate{gate: gate}, cfg.Embedding.Retry, logger,
	)

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, budget, logger,
	)

	if cfg.Embedding.CacheTTLHours > 0 {
		embedder = embcache.New(
			embedder, store,
			time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	return embedder
}

// embedderGate adapts the admission gate to the retry loop's contract.
type embedderGate struct {
	gate *admissionuc.Gate
}

func (g embedderGate) Acquire(ctx context.Context) (embeddinguc.Permit, error) {
	p, err := g.gate.Acquire(ctx, admissionuc.ResourceEmbedder)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// indexGate adapts the admission gate to the orchestrator's contract.
type indexGate struct {
	gate *admissionuc.Gate
}

func (g indexGate) Acquire(ctx context.Context) (detectoruc.Permit, error) {
	p, err := g.gate.Acquire(ctx, admissionuc.ResourceIndex)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
