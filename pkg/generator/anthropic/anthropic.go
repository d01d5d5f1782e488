// Package anthropic implements generator.Generator over the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 4096

	apiVersion = "2023-06-01"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Generator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func New(c Config) (*Generator, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return &Generator{
		baseURL:     strings.TrimRight(c.BaseURL, "/"),
		apiKey:      c.APIKey,
		model:       c.Model,
		temperature: c.Temperature,
		maxTokens:   c.MaxTokens,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Generate sends the history to the Messages API. System messages anywhere in
// the history are lifted into the top-level system prompt in order, since the
// API accepts only user and assistant turns.
func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	req := messagesRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temperature,
	}

	var system []string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.GetText())
			continue
		}
		req.Messages = append(req.Messages, message{Role: m.Role, Content: m.GetText()})
	}
	req.System = strings.Join(system, "\n\n")

	headers := map[string]string{
		"x-api-key":         g.apiKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := generator.PostJSON(ctx, g.httpClient, g.baseURL+"/v1/messages", headers, req, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	var u *llm.Usage
	if resp.Usage != nil {
		u = &llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}

	return &llm.ChatResponse{
		Model:      resp.Model,
		CreatedAt:  time.Now().UTC(),
		Message:    llm.NewTextMessage(llm.RoleAssistant, text.String()),
		StopReason: resp.StopReason,
		Usage:      u,
	}, nil
}

var _ generator.Generator = (*Generator)(nil)
