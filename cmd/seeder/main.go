// Command seeder embeds and indexes a JSON file of labeled exemplars into the
// reference corpus. Run it once per corpus version before serving traffic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/config"
	dbRedis "github.com/kailas-cloud/sentinel/internal/db/redis"
	"github.com/kailas-cloud/sentinel/internal/domain"
	logpkg "github.com/kailas-cloud/sentinel/internal/logger"
	"github.com/kailas-cloud/sentinel/internal/metrics"
	"github.com/kailas-cloud/sentinel/internal/repository/corpus"
	"github.com/kailas-cloud/sentinel/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/sentinel/internal/transport/openai"
	curationuc "github.com/kailas-cloud/sentinel/internal/usecase/curation"
)

const batchSize = 50

func main() {
	var (
		file     string
		recreate bool
	)
	flag.StringVar(&file, "file", "seed/exemplars.json", "path to the exemplars JSON file")
	flag.BoolVar(&recreate, "recreate", false, "drop and rebuild the corpus index before seeding")
	flag.Parse()

	if err := run(file, recreate); err != nil {
		fmt.Fprintln(os.Stderr, "seeder:", err)
		os.Exit(1)
	}
}

func run(file string, recreate bool) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	var inputs []curationuc.Input
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%s contains no exemplars", file)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	metrics.Register()

	// No retries or admission here: seeding is offline and low-volume.
	// The vector cache makes re-runs cheap.
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	var embedder domain.Embedder = base
	if cfg.Embedding.CacheTTLHours > 0 {
		embedder = embcache.New(
			base, store,
			time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	corpusRepo := corpus.New(store, cfg.Pipeline.CorpusVersion, cfg.Embedding.Dimensions, cfg.Pipeline.MaxTopK)
	if recreate {
		if err := corpusRepo.DropIndex(ctx); err != nil {
			return fmt.Errorf("drop corpus index: %w", err)
		}
		logger.Info("Corpus index dropped", zap.String("corpus_version", cfg.Pipeline.CorpusVersion))
	}
	svc := curationuc.New(embedder, corpusRepo, cfg.Pipeline.MaxInputRunes, logger)

	total := 0
	for offset := 0; offset < len(inputs); offset += batchSize {
		end := offset + batchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		stored, err := svc.AddExemplars(ctx, inputs[offset:end])
		if err != nil {
			return fmt.Errorf("index batch at %d: %w", offset, err)
		}
		total += len(stored)
		logger.Info("Batch indexed", zap.Int("offset", offset), zap.Int("count", len(stored)))
	}

	logger.Info("Seeding complete",
		zap.Int("total", total),
		zap.String("corpus_version", cfg.Pipeline.CorpusVersion),
		zap.String("index_version", cfg.IndexVersion()),
	)
	return nil
}
