// Package vector provides interfaces and implementations for vector storage
// of document chunks.
package vector

import "context"

// Document is one stored chunk with its embedding.
type Document struct {
	// ID is a unique identifier for the chunk.
	ID string

	// Source identifies the document the chunk was cut from. Retrieval is
	// scoped by matching it exactly.
	Source string

	// Content is the chunk text.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of chunk embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	// A non-empty source restricts the search to documents of that source.
	Query(ctx context.Context, embedding []float32, topK int, source string) ([]QueryResult, error)

	// DeleteSource removes every document of the given source and returns
	// how many were removed.
	DeleteSource(ctx context.Context, source string) (int, error)

	// Sources returns the distinct sources currently stored, sorted.
	Sources(ctx context.Context) ([]string, error)

	// Close releases any resources held by the driver.
	Close() error
}
