// Package websearch defines the web search port.
package websearch

import (
	"context"
	"errors"
)

// Searcher returns the content of the primary result for query, or "" when
// there are no results.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ErrDisabled is returned by Disabled for every query.
var ErrDisabled = errors.New("web search is not configured")

// Disabled is the searcher used when no provider is configured. Turns that
// request web search fail with ErrDisabled instead of silently answering
// without web context.
type Disabled struct{}

func (Disabled) Search(context.Context, string) (string, error) {
	return "", ErrDisabled
}
