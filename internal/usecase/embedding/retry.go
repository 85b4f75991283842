package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/config"
	"github.com/kailas-cloud/sentinel/internal/domain"
	"github.com/kailas-cloud/sentinel/internal/metrics"
)

// Permit is a granted admission that must be released after the attempt.
type Permit interface {
	Release()
}

// Gate admits embedding attempts. Every retry attempt acquires a fresh
// permit, so a retry storm still pays the full admission price.
type Gate interface {
	Acquire(ctx context.Context) (Permit, error)
}

// RetryingEmbedder retries transient provider failures with exponential
// backoff. The loop is explicit and bounded: max_attempts calls, each behind
// its own admission permit and per-attempt timeout.
type RetryingEmbedder struct {
	inner  domain.Embedder
	gate   Gate
	cfg    config.RetryConfig
	logger *zap.Logger
}

// NewRetryingEmbedder wraps an embedder with the retry policy.
func NewRetryingEmbedder(
	inner domain.Embedder, gate Gate,
	cfg config.RetryConfig, logger *zap.Logger,
) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:  inner,
		gate:   gate,
		cfg:    cfg,
		logger: logger,
	}
}

// Embed calls the inner embedder up to cfg.MaxAttempts times.
// Never retried: invalid input, admission timeout, quota exhaustion, caller
// cancellation. Rate-limited responses wait at least cfg.RateLimitedFloorMs
// before the next attempt.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	sched := backoff.NewExponentialBackOff()
	sched.InitialInterval = time.Duration(r.cfg.BaseDelayMs) * time.Millisecond
	sched.MaxInterval = time.Duration(r.cfg.MaxDelayMs) * time.Millisecond
	sched.RandomizationFactor = r.cfg.JitterFactor
	sched.MaxElapsedTime = 0 // attempts are bounded by count, not elapsed time
	sched.Reset()

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		result, err := r.attempt(ctx, text)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return domain.EmbeddingResult{}, err
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := sched.NextBackOff()
		if errors.Is(err, domain.ErrUpstreamRateLimited) {
			if floor := time.Duration(r.cfg.RateLimitedFloorMs) * time.Millisecond; delay < floor {
				delay = floor
			}
		}

		metrics.EmbeddingRetriesTotal.WithLabelValues(domain.DegradeReason(err)).Inc()
		r.logger.Warn("Embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.EmbeddingResult{}, fmt.Errorf("retry wait: %w", ctx.Err())
		}
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embed after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func (r *RetryingEmbedder) attempt(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	permit, err := r.gate.Acquire(ctx)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	defer permit.Release()

	actx := ctx
	if r.cfg.AttemptTimeoutMs > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.AttemptTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	return r.inner.Embed(actx, text)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAdmissionTimeout),
		errors.Is(err, domain.ErrEmbeddingQuotaExceeded),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
