package testutils

import (
	"context"
	"sync"
	"time"
)

// StubSearcher returns a fixed web search result.
type StubSearcher struct {
	mu     sync.Mutex
	Result string
	Err    error
	Delay  time.Duration
	calls  int
}

func (s *StubSearcher) Search(ctx context.Context, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := wait(ctx, s.Delay); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Result, nil
}

func (s *StubSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
