// Package retriever defines the document similarity search port.
package retriever

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyScope is returned when a search is attempted without a document
// scope.
var ErrEmptyScope = errors.New("document scope is required")

// Chunk is one retrieved slice of a document.
type Chunk struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// DocumentRetriever returns up to k chunks of the document identified by
// scope, most similar first.
type DocumentRetriever interface {
	Search(ctx context.Context, query, scope string, k int) ([]Chunk, error)
}

// JoinContent concatenates chunk contents with newlines, in order.
func JoinContent(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n")
}
