package detector

import (
	"context"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.embedFn(ctx, text)
}

type mockCorpus struct {
	queryFn func(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
	calls   int
	lastK   int
}

func (m *mockCorpus) Query(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	m.calls++
	m.lastK = k
	return m.queryFn(ctx, vector, k)
}

type mockCache struct {
	entries map[string]domain.Decision
	puts    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]domain.Decision)}
}

func (m *mockCache) Get(fp string) (domain.Decision, bool) {
	d, ok := m.entries[fp]
	return d, ok
}

func (m *mockCache) Put(fp string, d domain.Decision) {
	m.puts++
	m.entries[fp] = d
}

type mockGate struct {
	acquired int
	released int
	err      error
}

func (g *mockGate) Acquire(_ context.Context) (Permit, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.acquired++
	return &mockPermit{gate: g}, nil
}

type mockPermit struct{ gate *mockGate }

func (p *mockPermit) Release() { p.gate.released++ }

func distressMatch(id string, sim, weight float64) domain.Match {
	return domain.Match{ExemplarID: id, Similarity: sim, Label: domain.LabelDistress, Weight: weight}
}

func benignMatch(id string, sim, weight float64) domain.Match {
	return domain.Match{ExemplarID: id, Similarity: sim, Label: domain.LabelNonDistress, Weight: weight}
}
