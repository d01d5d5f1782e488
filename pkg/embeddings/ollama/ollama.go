// Package ollama embeds text through Ollama's /api/embed endpoint.
package ollama

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/vector"
)

const (
	DefaultEmbeddingModel = "embeddinggemma"
	DefaultBaseURL        = "http://localhost:11434"

	// DefaultBatchSize is the number of inputs sent per request when unset.
	DefaultBatchSize = 32

	defaultTimeout = 120 * time.Second
)

// EmbedderConfig configures the Ollama embedder. Zero values take the
// package defaults.
type EmbedderConfig struct {
	BaseURL string
	Model   string

	// BatchSize caps the inputs of one /api/embed request. Larger batches
	// are split into several requests.
	BatchSize int

	// KeepAlive is forwarded to Ollama to control how long the model stays
	// loaded after a request (e.g. "5m"). Empty leaves Ollama's default.
	KeepAlive string

	Logger *slog.Logger
}

// Embedder calls Ollama's batch embedding API. A single query is a batch of
// one.
type Embedder struct {
	baseURL    string
	model      string
	batchSize  int
	keepAlive  string
	httpClient *http.Client
	logger     *slog.Logger
}

// embedRequest is Ollama's /api/embed body. Input accepts a list of texts.
type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("invalid embedding batch size %d", cfg.BatchSize)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Embedder{
		baseURL:    cmp.Or(cfg.BaseURL, DefaultBaseURL),
		model:      cmp.Or(cfg.Model, DefaultEmbeddingModel),
		batchSize:  cfg.BatchSize,
		keepAlive:  cfg.KeepAlive,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     cfg.Logger,
	}, nil
}

// Embed converts a query into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most the configured batch size
// and returns the embeddings in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	size := e.batchSize
	if size == 0 {
		size = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("inputs %d-%d: %w", start, end-1, err)
		}
		out = append(out, batch...)
	}

	if err := embeddings.CheckBatch(len(texts), out); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}
	return out, nil
}

func (e *Embedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Input: inputs, KeepAlive: e.keepAlive})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}
	if err := embeddings.CheckBatch(len(inputs), embedResp.Embeddings); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	e.logger.Debug("embedded batch", "model", e.model, "inputs", len(inputs), "prompt_tokens", embedResp.PromptEvalCount)
	return embedResp.Embeddings, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
