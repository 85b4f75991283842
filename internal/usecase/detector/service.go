// Package detector orchestrates the distress-detection pipeline:
// normalize → cache lookup → admit → embed → search → score → cache write.
// Infra failures degrade into a well-formed uncertain Decision; the only
// error Evaluate ever returns is invalid input.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/domain"
	"github.com/kailas-cloud/sentinel/internal/metrics"
)

// Config holds the pipeline knobs the orchestrator needs.
type Config struct {
	TopK              int
	Tau               float64
	MaxInputRunes     int
	TopMatchesInReply int
	IndexVersion      string
}

// Service is the pipeline orchestrator.
type Service struct {
	embedder Embedder
	corpus   CorpusSearcher
	cache    DecisionCache
	gate     IndexGate
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates the orchestrator. cache and gate may be nil (disabled).
func New(
	embedder Embedder, corpus CorpusSearcher,
	cache DecisionCache, gate IndexGate,
	cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		embedder: embedder,
		corpus:   corpus,
		cache:    cache,
		gate:     gate,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate classifies one text. Always returns a well-formed Decision for
// valid input; dependency failures are folded into a degraded Decision.
// The only returned error is domain.ErrInvalidInput.
func (s *Service) Evaluate(ctx context.Context, text string) (domain.Decision, error) {
	start := time.Now()
	defer func() {
		metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	}()

	normalized := domain.Normalize(text, s.cfg.MaxInputRunes)
	if normalized == "" {
		return domain.Decision{}, fmt.Errorf("empty text after normalization: %w", domain.ErrInvalidInput)
	}
	fingerprint := domain.Fingerprint(normalized)

	if s.cache != nil {
		if d, ok := s.cache.Get(fingerprint); ok {
			metrics.DecisionsTotal.WithLabelValues(string(d.Label)).Inc()
			return d, nil
		}
	}

	decision, err := s.classify(ctx, normalized)
	if err != nil {
		// A provider can reject the input itself (e.g. over its token limit);
		// that is the caller's error, not an infra failure to fold away.
		if errors.Is(err, domain.ErrInvalidInput) {
			return domain.Decision{}, err
		}
		return s.degrade(err), nil
	}

	if s.cache != nil {
		s.cache.Put(fingerprint, decision)
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Label)).Inc()
	return decision, nil
}

// classify runs the miss path: embed, admit the index query, search, score.
func (s *Service) classify(ctx context.Context, normalized string) (domain.Decision, error) {
	embResult, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("embed: %w", err)
	}

	matches, err := s.search(ctx, embResult.Embedding)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("search corpus: %w", err)
	}

	label, confidence := Score(matches, s.cfg.Tau)

	top := matches
	if n := s.cfg.TopMatchesInReply; n > 0 && len(top) > n {
		top = top[:n]
	}

	return domain.Decision{
		Label:        label,
		Confidence:   confidence,
		TopMatches:   top,
		IndexVersion: s.cfg.IndexVersion,
		Timestamp:    s.now(),
	}, nil
}

func (s *Service) search(ctx context.Context, vector []float32) ([]domain.Match, error) {
	if s.gate != nil {
		permit, err := s.gate.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer permit.Release()
	}
	return s.corpus.Query(ctx, vector, s.cfg.TopK)
}

// degrade folds a pipeline error into the fallback Decision.
func (s *Service) degrade(err error) domain.Decision {
	reason := domain.DegradeReason(err)
	metrics.DegradedTotal.WithLabelValues(reason).Inc()

	// Version skew must reach operators, not just a metrics label.
	if errors.Is(err, domain.ErrDimensionMismatch) {
		s.logger.Error("Dimension mismatch between query vector and corpus index",
			zap.String("index_version", s.cfg.IndexVersion),
			zap.Error(err),
		)
	} else {
		s.logger.Warn("Pipeline degraded",
			zap.String("reason", reason),
			zap.Error(err),
		)
	}

	return domain.DegradedDecision(s.cfg.IndexVersion, err, s.now())
}
