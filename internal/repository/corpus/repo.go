// Package corpus adapts the exemplar reference corpus to the vector database:
// exemplars live in Redis hashes behind one FT vector index per corpus version.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/sentinel/internal/db"
	"github.com/kailas-cloud/sentinel/internal/domain"
)

// store is the consumer interface for corpus operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the reference corpus index over a vector database.
type Repo struct {
	store     store
	version   string
	dimension int
	maxK      int
	hnsw      HNSWConfig
}

// New creates a corpus repository for one corpus version and vector dimension.
// maxK bounds the K accepted by Query.
func New(s store, version string, dimension, maxK int) *Repo {
	return &Repo{
		store:     s,
		version:   version,
		dimension: dimension,
		maxK:      maxK,
	}
}

// WithHNSW overrides the HNSW index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%scorpus:%s:idx", domain.KeyPrefix, r.version)
}

func (r *Repo) keyPrefix() string {
	return fmt.Sprintf("%scorpus:%s:", domain.KeyPrefix, r.version)
}

// EnsureIndex creates the FT vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe corpus index: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.keyPrefix()},
		Fields: []db.IndexField{
			{Name: "label", Type: db.IndexFieldTag},
			{Name: "category", Type: db.IndexFieldTag},
			{Name: "weight", Type: db.IndexFieldNumeric},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.dimension,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create corpus index: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}
	return nil
}

// DropIndex removes the corpus index for this version. Exemplar hashes are
// kept; EnsureIndex rebuilds the index over them. Dropping an index that does
// not exist is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		return fmt.Errorf("drop corpus index: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}
	return nil
}

// Ready reports whether the corpus index for this version exists.
func (r *Repo) Ready(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("probe corpus index: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}
	if !exists {
		return fmt.Errorf("corpus index %s: %w", r.indexName(), db.ErrIndexNotFound)
	}
	return nil
}

// Upsert writes exemplars into the corpus in one pipelined round-trip.
// Exemplars are validated first; a single bad exemplar rejects the whole batch.
func (r *Repo) Upsert(ctx context.Context, exemplars []domain.Exemplar) error {
	if len(exemplars) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(exemplars))
	for i := range exemplars {
		ex := &exemplars[i]
		if err := validateExemplar(ex, r.dimension); err != nil {
			return err
		}
		items = append(items, db.HashSetItem{
			Key:    r.keyPrefix() + ex.ID,
			Fields: exemplarFields(ex),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d exemplars: %w", len(items), errors.Join(domain.ErrIndexUnavailable, err))
	}
	return nil
}

// Query runs a top-K similarity search. Matches come back ordered by
// descending similarity, ties broken by exemplar id for determinism.
// An empty corpus yields an empty slice, not an error.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), r.dimension, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrInvalidInput)
	}
	if k > r.maxK {
		k = r.maxK
	}

	q := &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"label", "category", "weight", "text"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("corpus knn: %w", errors.Join(domain.ErrIndexUnavailable, err))
	}

	return parseMatches(sr, r.keyPrefix()), nil
}

// Version returns the corpus version this repository serves.
func (r *Repo) Version() string { return r.version }

func parseMatches(sr *db.SearchResult, prefix string) []domain.Match {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	matches := make([]domain.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		m, ok := matchFromEntry(entry, prefix)
		if !ok {
			continue
		}
		matches = append(matches, m)
	}

	// The backend orders by distance already; re-sort to pin down tie-breaking.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ExemplarID < matches[j].ExemplarID
	})

	return matches
}
