package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/domain"
	"github.com/kailas-cloud/sentinel/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	m.Run()
}

func TestInstrumented_RecordsUsage(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{result: domain.EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 17}},
	}}
	budget := NewBudgetTracker("openai", 1000, 0, BudgetActionReject, zap.NewNop())
	e := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small", budget, zap.NewNop())

	result, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := budget.DailyUsed(); got != 17 {
		t.Fatalf("budget DailyUsed = %d, want 17", got)
	}
}

func TestInstrumented_RejectsOverBudget(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{result: domain.EmbeddingResult{TotalTokens: 1}},
	}}
	budget := NewBudgetTracker("openai", 10, 0, BudgetActionReject, zap.NewNop())
	budget.Record(10)
	e := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small", budget, zap.NewNop())

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if inner.callCount() != 0 {
		t.Fatalf("expected no inner call over budget, got %d", inner.callCount())
	}
}

func TestInstrumented_NilBudgetPassesThrough(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{result: domain.EmbeddingResult{Embedding: []float32{1}}},
	}}
	e := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small", nil, zap.NewNop())

	if _, err := e.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumented_PropagatesInnerError(t *testing.T) {
	inner := &mockEmbedder{results: []embedOutcome{
		{err: domain.ErrUpstreamUnavailable},
	}}
	e := NewInstrumentedEmbedder(inner, "openai", "text-embedding-3-small", nil, zap.NewNop())

	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
