package checkpoint

import (
	"context"

	"github.com/papercomputeco/ragchat/pkg/conversation"
)

// Store persists checkpoint lineages keyed by thread ID.
//
// Writes are serialized per thread: two concurrent appends to one thread
// can never both succeed with the same sequence number. Appends to distinct
// threads proceed independently.
type Store interface {
	// Load returns the latest checkpoint of the thread, or a NotFoundError
	// if the thread has none.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Append atomically writes a new checkpoint holding state and the next
	// node marker, linked to the thread's current latest checkpoint.
	Append(ctx context.Context, threadID string, state conversation.State, next string) (*Checkpoint, error)

	// History returns every checkpoint of the thread, oldest first.
	// Unknown threads yield an empty slice.
	History(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// ListThreads returns all thread IDs ordered by their first checkpoint.
	ListThreads(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
