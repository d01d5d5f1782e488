package testutils

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// DefaultEmbedding is returned for any text without an entry in
// MockEmbedder.Embeddings. It matches the dimensionality the in-memory
// vector tests query with.
var DefaultEmbedding = []float32{0.1, 0.2, 0.3}

// MockEmbedder returns fixed embeddings and records how it was called.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn fails any call whose input includes this text.
	FailOn string

	mu      sync.Mutex
	queries []string
	batches [][]string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	return m.lookup(text), nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, slices.Clone(texts))
	m.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}
		out = append(out, m.lookup(text))
	}
	return out, nil
}

func (m *MockEmbedder) lookup(text string) []float32 {
	if emb, ok := m.Embeddings[text]; ok {
		return emb
	}
	return DefaultEmbedding
}

// Queries returns the texts passed to Embed.
func (m *MockEmbedder) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queries)
}

// Batches returns the inputs of each EmbedBatch call.
func (m *MockEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.batches)
}

func (m *MockEmbedder) Close() error {
	return nil
}
