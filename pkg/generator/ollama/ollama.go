// Package ollama implements generator.Generator over Ollama's /api/chat.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
}

type Generator struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

func New(c Config) *Generator {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return &Generator{
		baseURL:     strings.TrimRight(c.BaseURL, "/"),
		model:       c.Model,
		temperature: c.Temperature,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	req := chatRequest{
		Model:    g.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Options:  &chatOptions{Temperature: &g.temperature},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.GetText()})
	}

	var resp chatResponse
	if err := generator.PostJSON(ctx, g.httpClient, g.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return nil, err
	}

	var usage *llm.Usage
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 || resp.TotalDuration > 0 {
		usage = &llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			TotalDurationNs:  resp.TotalDuration,
			PromptDurationNs: resp.PromptEvalDuration,
		}
	}

	stopReason := resp.DoneReason
	if stopReason == "" && resp.Done {
		stopReason = "stop"
	}

	return &llm.ChatResponse{
		Model:      resp.Model,
		CreatedAt:  resp.CreatedAt,
		Message:    llm.NewTextMessage(llm.RoleAssistant, resp.Message.Content),
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

var _ generator.Generator = (*Generator)(nil)
