package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/ragchat/pkg/llm"
)

// StubGenerator replies with Reply and Usage and records every history it
// was given.
type StubGenerator struct {
	mu    sync.Mutex
	Reply string
	Usage *llm.Usage
	Err   error

	// Block, when non-nil, is waited on (or ctx cancellation) before replying.
	Block chan struct{}

	histories [][]llm.Message
}

func NewStubGenerator(reply string) *StubGenerator {
	return &StubGenerator{
		Reply: reply,
		Usage: &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func (g *StubGenerator) Generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	g.mu.Lock()
	history := make([]llm.Message, len(messages))
	for i := range messages {
		history[i] = messages[i].Clone()
	}
	g.histories = append(g.histories, history)
	block := g.Block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}

	var usage *llm.Usage
	if g.Usage != nil {
		u := *g.Usage
		usage = &u
	}
	return &llm.ChatResponse{
		Model:      "stub",
		Message:    llm.NewTextMessage(llm.RoleAssistant, g.Reply),
		StopReason: "stop",
		Usage:      usage,
	}, nil
}

func (g *StubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.histories)
}

// LastHistory returns the messages passed to the most recent call.
func (g *StubGenerator) LastHistory() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.histories) == 0 {
		return nil
	}
	return g.histories[len(g.histories)-1]
}
