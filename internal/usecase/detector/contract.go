package detector

import (
	"context"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

// Embedder vectorizes normalized text. The concrete chain behind this
// interface handles caching, budget, admission, and retries.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CorpusSearcher returns the top-K labeled neighbors for a query vector.
type CorpusSearcher interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
}

// DecisionCache maps a normalized-text fingerprint to a prior Decision.
type DecisionCache interface {
	Get(fingerprint string) (domain.Decision, bool)
	Put(fingerprint string, d domain.Decision)
}

// Permit is a granted index admission; released when the query completes.
type Permit interface {
	Release()
}

// IndexGate admits corpus index queries.
type IndexGate interface {
	Acquire(ctx context.Context) (Permit, error)
}
