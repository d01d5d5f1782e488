// Package embeddingutils builds the configured embedder.
package embeddingutils

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// Dimensions, when set, is enforced on every embedding returned.
	Dimensions uint

	BatchSize uint
	KeepAlive string
	Logger    *slog.Logger
}

// NewEmbedder returns the embedder for o.ProviderType. An empty provider
// means ollama.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	if o.BatchSize > math.MaxInt32 {
		return nil, fmt.Errorf("embedding batch size %d is too large", o.BatchSize)
	}
	if o.Dimensions > math.MaxInt32 {
		return nil, fmt.Errorf("embedding dimensions %d is too large", o.Dimensions)
	}

	var (
		e   embeddings.Embedder
		err error
	)
	switch o.ProviderType {
	case "ollama", "":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:   o.TargetURL,
			Model:     o.Model,
			BatchSize: int(o.BatchSize),
			KeepAlive: o.KeepAlive,
			Logger:    o.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	return embeddings.RequireDimensions(e, int(o.Dimensions)), nil
}
