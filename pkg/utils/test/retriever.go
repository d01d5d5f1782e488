package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/ragchat/pkg/retriever"
)

// StubRetriever returns fixed chunks per scope.
type StubRetriever struct {
	mu     sync.Mutex
	Chunks map[string][]retriever.Chunk
	Err    error

	// Delay is waited (or ctx cancellation) before answering.
	Delay time.Duration

	calls int
}

func NewStubRetriever() *StubRetriever {
	return &StubRetriever{Chunks: map[string][]retriever.Chunk{}}
}

// WithText sets scope to return a single chunk holding text.
func (s *StubRetriever) WithText(scope, text string) *StubRetriever {
	s.Chunks[scope] = []retriever.Chunk{{ID: scope + "#0", Source: scope, Content: text}}
	return s
}

func (s *StubRetriever) Search(ctx context.Context, _ string, scope string, k int) ([]retriever.Chunk, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := wait(ctx, s.Delay); err != nil {
		return nil, err
	}
	if scope == "" {
		return nil, retriever.ErrEmptyScope
	}
	if s.Err != nil {
		return nil, s.Err
	}
	chunks := s.Chunks[scope]
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

func (s *StubRetriever) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
