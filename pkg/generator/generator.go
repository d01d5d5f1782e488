// Package generator defines the language-model port used by the workflow's
// Generate node and the relevance grader.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/ragchat/pkg/llm"
)

// ErrGeneration is wrapped by every provider failure.
var ErrGeneration = errors.New("generation failed")

// Generator turns a message history into the next assistant reply.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error)
}

// PostJSON sends body as JSON to url and decodes a 200 response into out.
// Non-200 responses are returned as errors carrying the response body.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %w", ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %w", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrGeneration, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrGeneration, err)
	}
	return nil
}
