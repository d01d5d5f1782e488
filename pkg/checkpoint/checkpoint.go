// Package checkpoint persists workflow state per conversation thread as an
// append-only lineage of content-addressed checkpoints.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/papercomputeco/ragchat/pkg/conversation"
)

// End is the next-node marker of a checkpoint written after a turn completed.
const End = "__end__"

// Checkpoint is a durable snapshot of a thread's conversation state plus the
// node the workflow executes next.
type Checkpoint struct {
	// ID is the content-addressed identifier (SHA-256, hex-encoded) of the
	// checkpoint, computed over its parent, thread, sequence, next marker
	// and state.
	ID string `json:"id"`

	// ParentID links to the previous checkpoint in the thread's lineage.
	// This will be nil for the first checkpoint of a thread.
	ParentID *string `json:"parent_id"`

	ThreadID string `json:"thread_id"`

	// Seq is 1-based and strictly increasing per thread.
	Seq int `json:"seq"`

	// Next is the node the workflow resumes at, or End.
	Next string `json:"next"`

	State conversation.State `json:"state"`

	CreatedAt time.Time `json:"created_at"`
}

// New builds the checkpoint that follows parent (nil for the first checkpoint
// of a thread). The state is deep-copied so later caller mutations do not leak
// into the stored value.
func New(threadID string, parent *Checkpoint, state conversation.State, next string) *Checkpoint {
	cp := &Checkpoint{
		ThreadID:  threadID,
		Seq:       1,
		Next:      next,
		State:     state.Clone(),
		CreatedAt: time.Now().UTC(),
	}

	if parent != nil {
		parentID := parent.ID
		cp.ParentID = &parentID
		cp.Seq = parent.Seq + 1
	}

	cp.ID = cp.computeID()
	return cp
}

// Completed reports whether the turn that wrote this checkpoint ran to the end.
func (c *Checkpoint) Completed() bool {
	return c.Next == End
}

func (c *Checkpoint) computeID() string {
	parent := ""
	if c.ParentID != nil {
		parent = *c.ParentID
	}

	// Struct fields marshal in declaration order, so the digest is stable.
	data, err := json.Marshal(struct {
		Parent   string             `json:"parent"`
		ThreadID string             `json:"thread_id"`
		Seq      int                `json:"seq"`
		Next     string             `json:"next"`
		State    conversation.State `json:"state"`
	}{
		Parent:   parent,
		ThreadID: c.ThreadID,
		Seq:      c.Seq,
		Next:     c.Next,
		State:    c.State,
	})
	if err != nil {
		panic("failed to marshal checkpoint hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
