// Package curation manages the labeled exemplar corpus: validating, embedding
// and upserting reference texts that the detector votes against.
package curation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

// Input is one exemplar submitted for indexing. ID is optional (assigned
// when empty); Weight defaults to 1.
type Input struct {
	ID       string               `json:"id"`
	Text     string               `json:"text"`
	Label    domain.ExemplarLabel `json:"label"`
	Weight   float64              `json:"weight"`
	Category string               `json:"category"`
}

// Service embeds and upserts exemplars.
type Service struct {
	embedder      Embedder
	corpus        CorpusWriter
	maxInputRunes int
	logger        *zap.Logger
}

// New creates a curation service.
func New(embedder Embedder, corpus CorpusWriter, maxInputRunes int, logger *zap.Logger) *Service {
	return &Service{
		embedder:      embedder,
		corpus:        corpus,
		maxInputRunes: maxInputRunes,
		logger:        logger,
	}
}

// AddExemplars validates, embeds, and indexes the inputs. All-or-nothing:
// any invalid input or failed embedding aborts before the index is touched.
// Returns the stored exemplars with assigned IDs.
func (s *Service) AddExemplars(ctx context.Context, inputs []Input) ([]domain.Exemplar, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no exemplars given: %w", domain.ErrInvalidInput)
	}

	exemplars := make([]domain.Exemplar, 0, len(inputs))
	for i, in := range inputs {
		ex, err := s.prepare(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("exemplar %d: %w", i, err)
		}
		exemplars = append(exemplars, ex)
	}

	if err := s.corpus.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	if err := s.corpus.Upsert(ctx, exemplars); err != nil {
		return nil, fmt.Errorf("upsert exemplars: %w", err)
	}

	s.logger.Info("Exemplars indexed", zap.Int("count", len(exemplars)))
	return exemplars, nil
}

func (s *Service) prepare(ctx context.Context, in Input) (domain.Exemplar, error) {
	// Exemplars go through the same normalization as query text, so
	// similarity compares like with like.
	normalized := domain.Normalize(in.Text, s.maxInputRunes)
	if normalized == "" {
		return domain.Exemplar{}, fmt.Errorf("empty text: %w", domain.ErrInvalidInput)
	}
	if !in.Label.Valid() {
		return domain.Exemplar{}, fmt.Errorf("unknown label %q: %w", in.Label, domain.ErrInvalidInput)
	}

	weight := in.Weight
	if weight == 0 {
		weight = 1
	}
	if weight < 0 || weight > 1 {
		return domain.Exemplar{}, fmt.Errorf("weight %g out of (0,1]: %w", in.Weight, domain.ErrInvalidInput)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	result, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return domain.Exemplar{}, fmt.Errorf("embed %q: %w", id, err)
	}

	return domain.Exemplar{
		ID:       id,
		Text:     normalized,
		Vector:   result.Embedding,
		Label:    in.Label,
		Weight:   weight,
		Category: in.Category,
	}, nil
}
