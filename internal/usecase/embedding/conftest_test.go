package embedding

import (
	"context"
	"sync"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

// mockEmbedder returns queued results in order; the last entry repeats.
type mockEmbedder struct {
	mu      sync.Mutex
	results []embedOutcome
	calls   int
}

type embedOutcome struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	m.calls++
	out := m.results[idx]
	return out.result, out.err
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockGate counts permits handed out and released.
type mockGate struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

func (g *mockGate) Acquire(_ context.Context) (Permit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.acquired++
	return &mockPermit{gate: g}, nil
}

type mockPermit struct {
	gate *mockGate
	once sync.Once
}

func (p *mockPermit) Release() {
	p.once.Do(func() {
		p.gate.mu.Lock()
		p.gate.released++
		p.gate.mu.Unlock()
	})
}

type mockBudgetStore struct {
	mu     sync.Mutex
	values map[string]int64
	getErr error
	incErr error
}

func newMockBudgetStore() *mockBudgetStore {
	return &mockBudgetStore{values: make(map[string]int64)}
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incErr != nil {
		return m.incErr
	}
	m.values[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.values[key], nil
}
