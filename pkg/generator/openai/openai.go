// Package openai implements generator.Generator over the OpenAI Chat
// Completions API.
package openai

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
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o-mini"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

type Generator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

func New(c Config) (*Generator, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return &Generator{
		baseURL:     strings.TrimRight(c.BaseURL, "/"),
		apiKey:      c.APIKey,
		model:       c.Model,
		temperature: c.Temperature,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	req := chatRequest{
		Model:       g.model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: &g.temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.GetText()})
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}
	if err := generator.PostJSON(ctx, g.httpClient, g.baseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", generator.ErrGeneration)
	}
	choice := resp.Choices[0]

	var usage *llm.Usage
	if resp.Usage != nil {
		usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return &llm.ChatResponse{
		Model:      resp.Model,
		CreatedAt:  time.Unix(resp.Created, 0).UTC(),
		Message:    llm.NewTextMessage(llm.RoleAssistant, choice.Message.Content),
		StopReason: choice.FinishReason,
		Usage:      usage,
	}, nil
}

var _ generator.Generator = (*Generator)(nil)
