package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/config"
	"github.com/kailas-cloud/sentinel/internal/domain"
)

func fastRetryConfig(maxAttempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:        maxAttempts,
		BaseDelayMs:        1,
		MaxDelayMs:         5,
		JitterFactor:       0,
		RateLimitedFloorMs: 1,
		AttemptTimeoutMs:   1000,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 5}},
	}}
	gate := &mockGate{}
	r := NewRetryingEmbedder(inner, gate, fastRetryConfig(3), zap.NewNop())

	result, err := r.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTokens != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if inner.callCount() != 1 {
		t.Fatalf("expected 1 attempt, got %d", inner.callCount())
	}
	if gate.acquired != 1 || gate.released != 1 {
		t.Fatalf("expected 1 permit acquired and released, got %d/%d", gate.acquired, gate.released)
	}
}

func TestRetry_TransientFailureThenSuccess(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: fmt.Errorf("call: %w", domain.ErrUpstreamUnavailable)},
		{result: domain.EmbeddingResult{Embedding: []float32{1}}},
	}}
	gate := &mockGate{}
	r := NewRetryingEmbedder(inner, gate, fastRetryConfig(3), zap.NewNop())

	if _, err := r.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.callCount() != 2 {
		t.Fatalf("expected 2 attempts, got %d", inner.callCount())
	}
}

func TestRetry_EachAttemptConsumesOnePermit(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: domain.ErrUpstreamUnavailable},
	}}
	gate := &mockGate{}
	r := NewRetryingEmbedder(inner, gate, fastRetryConfig(3), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if gate.acquired != 3 {
		t.Fatalf("expected 3 permits for 3 attempts, got %d", gate.acquired)
	}
	if gate.released != 3 {
		t.Fatalf("expected all permits released, got %d", gate.released)
	}
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: fmt.Errorf("a: %w", domain.ErrUpstreamUnavailable)},
		{err: fmt.Errorf("b: %w", domain.ErrUpstreamRateLimited)},
	}}
	r := NewRetryingEmbedder(inner, &mockGate{}, fastRetryConfig(2), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrUpstreamRateLimited) {
		t.Fatalf("expected last error to surface, got %v", err)
	}
}

func TestRetry_InvalidInputNeverRetried(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: fmt.Errorf("call: %w", domain.ErrInvalidInput)},
	}}
	gate := &mockGate{}
	r := NewRetryingEmbedder(inner, gate, fastRetryConfig(3), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("expected 1 attempt, got %d", inner.callCount())
	}
}

func TestRetry_AdmissionTimeoutNotRetried(t *testing.T) {
	gate := &mockGate{err: fmt.Errorf("wait: %w", domain.ErrAdmissionTimeout)}
	inner := &mockEmbedder{results: []embedOutcome{{}}}
	r := NewRetryingEmbedder(inner, gate, fastRetryConfig(3), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrAdmissionTimeout) {
		t.Fatalf("expected ErrAdmissionTimeout, got %v", err)
	}
	if inner.callCount() != 0 {
		t.Fatalf("expected no inner calls, got %d", inner.callCount())
	}
}

func TestRetry_QuotaExceededNotRetried(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: fmt.Errorf("budget: %w", domain.ErrEmbeddingQuotaExceeded)},
	}}
	r := NewRetryingEmbedder(inner, &mockGate{}, fastRetryConfig(3), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("expected 1 attempt, got %d", inner.callCount())
	}
}

func TestRetry_CallerCancellationStopsLoop(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: domain.ErrUpstreamUnavailable},
	}}
	cfg := fastRetryConfig(3)
	cfg.BaseDelayMs = 5000 // force the wait path
	r := NewRetryingEmbedder(inner, &mockGate{}, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Embed(ctx, "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancellation did not interrupt the backoff wait")
	}
}

func TestRetry_CancellationWrappedByTransportNotRetried(t *testing.T) {
	// The transport joins the upstream sentinel with the underlying cause;
	// a cancellation riding along must stop the loop, not look transient.
	inner := &mockEmbedder{results: []embedOutcome{
		{err: fmt.Errorf("embedding request failed: %w",
			errors.Join(domain.ErrUpstreamUnavailable, context.Canceled))},
	}}
	r := NewRetryingEmbedder(inner, &mockGate{}, fastRetryConfig(3), zap.NewNop())

	_, err := r.Embed(context.Background(), "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("expected 1 attempt, got %d", inner.callCount())
	}
}

func TestRetry_RateLimitedFloorApplied(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: domain.ErrUpstreamRateLimited},
		{result: domain.EmbeddingResult{Embedding: []float32{1}}},
	}}
	cfg := fastRetryConfig(2)
	cfg.BaseDelayMs = 1
	cfg.RateLimitedFloorMs = 50
	r := NewRetryingEmbedder(inner, &mockGate{}, cfg, zap.NewNop())

	start := time.Now()
	if _, err := r.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected at least the rate-limited floor wait, took %v", elapsed)
	}
}
