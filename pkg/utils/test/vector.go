package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/ragchat/pkg/vector"
)

// MockVectorDriver is a test vector driver that returns canned results and
// records what it was asked.
type MockVectorDriver struct {
	mu        sync.Mutex
	documents []vector.Document
	Results   []vector.QueryResult

	// Err is returned by every call when set.
	Err error

	// Sources passed to Query, in call order.
	QueriedSources []string
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make([]vector.Document, 0),
		Results:   make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.documents = append(m.documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int, source string) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueriedSources = append(m.QueriedSources, source)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) DeleteSource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	kept := m.documents[:0]
	n := 0
	for _, d := range m.documents {
		if d.Source == source {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.documents = kept
	return n, nil
}

func (m *MockVectorDriver) Sources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, d := range m.documents {
		if !seen[d.Source] {
			seen[d.Source] = true
			out = append(out, d.Source)
		}
	}
	return out, nil
}

// Documents returns a copy of every added document.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vector.Document(nil), m.documents...)
}

func (m *MockVectorDriver) Close() error {
	return nil
}
