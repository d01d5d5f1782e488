package testutils

import (
	"context"
	"sync"
)

// GradeCall records one Grade invocation.
type GradeCall struct {
	Query   string
	Context string
}

// StubGrader grades by exact context match: contexts listed in Relevant are
// relevant, everything else is not.
type StubGrader struct {
	mu       sync.Mutex
	Relevant map[string]bool
	Err      error
	calls    []GradeCall
}

func NewStubGrader(relevant ...string) *StubGrader {
	g := &StubGrader{Relevant: map[string]bool{}}
	for _, r := range relevant {
		g.Relevant[r] = true
	}
	return g
}

func (g *StubGrader) Grade(_ context.Context, query, ctxText string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, GradeCall{Query: query, Context: ctxText})
	if g.Err != nil {
		return false, g.Err
	}
	return g.Relevant[ctxText], nil
}

func (g *StubGrader) Calls() []GradeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GradeCall(nil), g.calls...)
}
