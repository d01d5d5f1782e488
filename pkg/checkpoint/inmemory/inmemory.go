// Package inmemory provides a map-backed checkpoint store for tests and
// ephemeral deployments.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
)

// Store implements checkpoint.Store using in-memory lineages.
type Store struct {
	// mu guards threads and order
	mu sync.RWMutex

	// threads maps a thread ID to its lineage, oldest first
	threads map[string][]*checkpoint.Checkpoint

	// order holds thread IDs in the order of their first checkpoint
	order []string
}

// NewStore creates a new in-memory checkpoint store.
func NewStore() *Store {
	return &Store{
		threads: make(map[string][]*checkpoint.Checkpoint),
	}
}

// Load returns the latest checkpoint of the thread.
func (s *Store) Load(_ context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage := s.threads[threadID]
	if len(lineage) == 0 {
		return nil, checkpoint.NotFoundError{ThreadID: threadID}
	}

	return copyCheckpoint(lineage[len(lineage)-1]), nil
}

// Append writes a new checkpoint at the head of the thread's lineage.
func (s *Store) Append(ctx context.Context, threadID string, state conversation.State, next string) (*checkpoint.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lineage := s.threads[threadID]
	var parent *checkpoint.Checkpoint
	if len(lineage) > 0 {
		parent = lineage[len(lineage)-1]
	} else {
		s.order = append(s.order, threadID)
	}

	cp := checkpoint.New(threadID, parent, state, next)
	s.threads[threadID] = append(lineage, cp)

	return copyCheckpoint(cp), nil
}

// History returns the thread's lineage, oldest first.
func (s *Store) History(_ context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage := s.threads[threadID]
	out := make([]*checkpoint.Checkpoint, 0, len(lineage))
	for _, cp := range lineage {
		out = append(out, copyCheckpoint(cp))
	}

	return out, nil
}

// ListThreads returns thread IDs ordered by their first checkpoint.
func (s *Store) ListThreads(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func copyCheckpoint(cp *checkpoint.Checkpoint) *checkpoint.Checkpoint {
	out := *cp
	out.State = cp.State.Clone()
	return &out
}
