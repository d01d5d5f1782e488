// Package conversation defines the state that flows through the chat workflow
// and is persisted per thread by the checkpoint store.
package conversation

import (
	"slices"
	"strings"

	"github.com/papercomputeco/ragchat/pkg/llm"
)

// State is the unit of work flowing through the workflow graph.
//
// Messages is append-only within a turn and carries the full thread history.
// RAGContext and WebContext hold the latest retrieval and search output for
// the current turn only.
type State struct {
	Messages        []llm.Message `json:"messages"`
	FilePath        string        `json:"file_path,omitempty"`
	EnableWebSearch bool          `json:"enable_web_search,omitempty"`
	RAGContext      string        `json:"rag_context,omitempty"`
	WebContext      string        `json:"web_context,omitempty"`
}

// NewTurn builds the initial state for a single user query.
func NewTurn(query, filePath string, enableWebSearch bool) State {
	return State{
		Messages:        []llm.Message{llm.NewTextMessage(llm.RoleUser, query)},
		FilePath:        filePath,
		EnableWebSearch: enableWebSearch,
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() State {
	out := *s
	if s.Messages != nil {
		out.Messages = make([]llm.Message, len(s.Messages))
		for i := range s.Messages {
			out.Messages[i] = s.Messages[i].Clone()
		}
	}
	return out
}

// Append adds messages to the end of the history.
func (s *State) Append(msgs ...llm.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// ClearContexts drops the transient retrieval and search output.
func (s *State) ClearContexts() {
	s.RAGContext = ""
	s.WebContext = ""
}

// LastMessage returns the final message of the history, or false when the
// history is empty.
func (s *State) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Query returns the text of the most recent user message, or "" when there
// is none.
func (s *State) Query() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].GetText()
		}
	}
	return ""
}

// EndsWithQuery reports whether the last message is a user message with
// non-blank text.
func (s *State) EndsWithQuery() bool {
	last, ok := s.LastMessage()
	return ok && last.Role == llm.RoleUser && strings.TrimSpace(last.GetText()) != ""
}

// Equal reports whether two states hold the same messages, scope, flag and
// contexts.
func (s *State) Equal(other *State) bool {
	if s.FilePath != other.FilePath ||
		s.EnableWebSearch != other.EnableWebSearch ||
		s.RAGContext != other.RAGContext ||
		s.WebContext != other.WebContext {
		return false
	}

	return slices.EqualFunc(s.Messages, other.Messages, func(a, b llm.Message) bool {
		return a.Role == b.Role && slices.Equal(a.Content, b.Content)
	})
}
