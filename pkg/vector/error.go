package vector

import "errors"

var (
	// ErrDimensions is returned when an embedding does not match the
	// configured dimensionality.
	ErrDimensions = errors.New("embedding dimensions mismatch")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrEmbedding is returned when text cannot be turned into an embedding.
	ErrEmbedding = errors.New("embedding failed")
)
