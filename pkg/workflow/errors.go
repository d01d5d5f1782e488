package workflow

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned when a turn does not end with a non-blank user
// message.
var ErrEmptyQuery = errors.New("turn must end with a non-empty user query")

// Capability sources reported by CapabilityError.
const (
	SourceDocumentRetriever = "DocumentRetriever"
	SourceWebSearcher       = "WebSearcher"
	SourceGenerator         = "Generator"
	SourceRelevanceGrader   = "RelevanceGrader"
)

// CapabilityError reports a failed port call. The turn is aborted and no
// checkpoint is written for the failed step.
type CapabilityError struct {
	Source string
	Node   NodeKind
	Err    error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed in node %s: %v", e.Source, e.Node, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ScopeError is returned when document retrieval is required but the turn has
// no document scope.
type ScopeError struct {
	ThreadID string
}

func (e *ScopeError) Error() string {
	if e.ThreadID == "" {
		return "document scope is required for retrieval"
	}
	return "document scope is required for retrieval in thread " + e.ThreadID
}

// CheckpointError reports a checkpoint store failure.
type CheckpointError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for thread %s: %v", e.Op, e.ThreadID, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}
