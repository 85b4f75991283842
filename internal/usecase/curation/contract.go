package curation

import (
	"context"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

// Embedder vectorizes exemplar texts.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CorpusWriter persists exemplars into the corpus index.
type CorpusWriter interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, exemplars []domain.Exemplar) error
}
