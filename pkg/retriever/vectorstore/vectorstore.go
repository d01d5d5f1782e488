// Package vectorstore implements retriever.DocumentRetriever on an
// embeddings.Embedder and a vector.Driver.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/retriever"
	"github.com/papercomputeco/ragchat/pkg/vector"
)

type Config struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver
	Logger   *slog.Logger
}

type Retriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *slog.Logger
}

func New(c Config) (*Retriever, error) {
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Driver == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return &Retriever{
		embedder: c.Embedder,
		driver:   c.Driver,
		logger:   c.Logger,
	}, nil
}

// Search embeds query and returns the k nearest chunks whose source is scope.
func (r *Retriever) Search(ctx context.Context, query, scope string, k int) ([]retriever.Chunk, error) {
	if scope == "" {
		return nil, retriever.ErrEmptyScope
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.driver.Query(ctx, emb, k, scope)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	chunks := make([]retriever.Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, retriever.Chunk{
			ID:      res.ID,
			Source:  res.Source,
			Content: res.Content,
			Score:   res.Score,
		})
	}

	r.logger.Debug("retrieved chunks", "scope", scope, "k", k, "count", len(chunks))

	return chunks, nil
}

var _ retriever.DocumentRetriever = (*Retriever)(nil)
