// Package embeddings defines the text embedding port used by retrieval and
// ingestion.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when embeddings do not have the expected
// number of dimensions.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts a single query into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into embeddings, one per text and in order.
	// Ingestion uses it to embed all chunks of a document.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// CheckBatch verifies that got holds one embedding per requested text and
// that all of them share a dimensionality.
func CheckBatch(want int, got [][]float32) error {
	if len(got) != want {
		return fmt.Errorf("expected %d embeddings, got %d", want, len(got))
	}
	for i := 1; i < len(got); i++ {
		if len(got[i]) != len(got[0]) {
			return fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, len(got[0]), len(got[i]))
		}
	}
	return nil
}

// RequireDimensions wraps e so that every returned vector must have dims
// entries. The vector store is created with a fixed dimensionality, so a
// model change is reported here instead of failing inside the store.
func RequireDimensions(e Embedder, dims int) Embedder {
	if dims <= 0 {
		return e
	}
	return &dimensionChecked{Embedder: e, dims: dims}
}

type dimensionChecked struct {
	Embedder
	dims int
}

func (d *dimensionChecked) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := d.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != d.dims {
		return nil, fmt.Errorf("%w: model returned %d, store expects %d", ErrDimensionMismatch, len(v), d.dims)
	}
	return v, nil
}

func (d *dimensionChecked) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := d.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range out {
		if len(v) != d.dims {
			return nil, fmt.Errorf("%w: model returned %d, store expects %d", ErrDimensionMismatch, len(v), d.dims)
		}
	}
	return out, nil
}
