// Package conversations provides the chat and thread views shared by the REST
// API and the MCP server.
package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/llm"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

// NoFile is the file value clients send to chat without a document scope.
const NoFile = "None"

// ChatInput is one user turn.
type ChatInput struct {
	ThreadID        string `json:"thread_id,omitempty"`
	Query           string `json:"query"`
	File            string `json:"file,omitempty"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty"`
}

// ChatOutput is the answer to a turn.
type ChatOutput struct {
	Response     string     `json:"response"`
	ThreadID     string     `json:"thread_id"`
	Usage        *llm.Usage `json:"usage,omitempty"`
	Path         []string   `json:"path"`
	CheckpointID string     `json:"checkpoint_id,omitempty"`
}

// Message is a history entry reduced to its text.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Thread is the latest state of a thread.
type Thread struct {
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`
	Next     string    `json:"next"`
	Seq      int       `json:"seq"`
	File     string    `json:"file,omitempty"`
}

// CheckpointSummary describes one checkpoint of a thread's lineage.
type CheckpointSummary struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Seq       int       `json:"seq"`
	Next      string    `json:"next"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Service runs turns and reads threads.
type Service struct {
	engine   *workflow.Engine
	store    checkpoint.Store
	ingester *ingest.Ingester
}

// NewService builds a Service. The ingester is optional; without it, chat
// file values are used as document scopes verbatim.
func NewService(engine *workflow.Engine, store checkpoint.Store, ingester *ingest.Ingester) (*Service, error) {
	if engine == nil {
		return nil, errors.New("workflow engine is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	return &Service{engine: engine, store: store, ingester: ingester}, nil
}

// Scope resolves a chat file value to the document source used for
// retrieval. "" and "None" mean no scope.
func (s *Service) Scope(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" || file == NoFile {
		return "", nil
	}
	if s.ingester == nil {
		return file, nil
	}
	return s.ingester.Path(file)
}

// Chat runs one turn.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	scope, err := s.Scope(in.File)
	if err != nil {
		return nil, err
	}

	state := conversation.NewTurn(in.Query, scope, in.EnableWebSearch)
	res, err := s.engine.Execute(ctx, in.ThreadID, state)
	if err != nil {
		return nil, err
	}
	return newChatOutput(res), nil
}

// Resume finishes the interrupted turn of a thread.
func (s *Service) Resume(ctx context.Context, threadID string) (*ChatOutput, error) {
	res, err := s.engine.Resume(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return newChatOutput(res), nil
}

// ListThreads returns thread IDs ordered by creation.
func (s *Service) ListThreads(ctx context.Context) ([]string, error) {
	threads, err := s.store.ListThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	if threads == nil {
		threads = []string{}
	}
	return threads, nil
}

// GetThread returns the latest state of a thread, or a
// checkpoint.NotFoundError.
func (s *Service) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	cp, err := s.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return &Thread{
		ThreadID: threadID,
		Messages: Messages(cp.State.Messages),
		Next:     cp.Next,
		Seq:      cp.Seq,
		File:     cp.State.FilePath,
	}, nil
}

// Checkpoints returns the lineage of a thread, oldest first, or a
// checkpoint.NotFoundError when it has none.
func (s *Service) Checkpoints(ctx context.Context, threadID string) ([]CheckpointSummary, error) {
	history, err := s.store.History(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, checkpoint.NotFoundError{ThreadID: threadID}
	}

	out := make([]CheckpointSummary, 0, len(history))
	for _, cp := range history {
		out = append(out, CheckpointSummary{
			ID:        cp.ID,
			ParentID:  cp.ParentID,
			Seq:       cp.Seq,
			Next:      cp.Next,
			Messages:  len(cp.State.Messages),
			CreatedAt: cp.CreatedAt,
		})
	}
	return out, nil
}

// Messages flattens llm messages to role and text.
func Messages(msgs []llm.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, Message{Role: msgs[i].Role, Text: msgs[i].GetText()})
	}
	return out
}

func newChatOutput(res *workflow.Result) *ChatOutput {
	out := &ChatOutput{
		Response: res.Message.GetText(),
		ThreadID: res.ThreadID,
		Usage:    res.Usage,
		Path:     make([]string, 0, len(res.Path)),
	}
	for _, k := range res.Path {
		out.Path = append(out.Path, string(k))
	}
	if res.Checkpoint != nil {
		out.CheckpointID = res.Checkpoint.ID
	}
	return out
}
