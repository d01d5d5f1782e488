// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/papercomputeco/ragchat/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing ragchat chunks.
	DefaultCollectionName = "ragchat"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// ChromaDriver implements vector.Driver using Chroma's REST API.
type ChromaDriver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewChromaDriver creates a new Chroma vector driver.
func NewChromaDriver(ctx context.Context, c Config, logger *slog.Logger) (*ChromaDriver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &ChromaDriver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collectionID, err := d.getOrCreateCollection(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %w", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", collectionID,
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *ChromaDriver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	err := d.do(ctx, http.MethodGet, d.baseURL+collectionsPath+"/"+d.collectionName, nil, &collection)
	if err == nil {
		return collection.ID, nil
	}

	// Collection doesn't exist, create it
	if err := d.do(ctx, http.MethodPost, d.baseURL+collectionsPath, map[string]string{"name": d.collectionName}, &collection); err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}

	return collection.ID, nil
}

func (d *ChromaDriver) collectionURL(op string) string {
	return fmt.Sprintf("%s%s/%s/%s", d.baseURL, collectionsPath, d.collectionID, op)
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (d *ChromaDriver) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// Add upserts documents with their embeddings.
func (d *ChromaDriver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	reqBody := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}

	for i, doc := range docs {
		reqBody.IDs[i] = doc.ID
		reqBody.Embeddings[i] = doc.Embedding
		reqBody.Metadatas[i] = map[string]any{"source": doc.Source}
		reqBody.Documents[i] = doc.Content
	}

	if err := d.do(ctx, http.MethodPost, d.collectionURL("upsert"), reqBody, nil); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *ChromaDriver) Query(ctx context.Context, embedding []float32, topK int, source string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances", "documents"},
	}
	if source != "" {
		reqBody.Where = map[string]any{"source": source}
	}

	var queryResp chromaQueryResponse
	if err := d.do(ctx, http.MethodPost, d.collectionURL("query"), reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	results := []vector.QueryResult{}

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 {
		return results, nil
	}

	group := func(i int) (distance float32, meta map[string]any, content string) {
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			distance = queryResp.Distances[0][i]
		}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
			meta = queryResp.Metadatas[0][i]
		}
		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) {
			content = queryResp.Documents[0][i]
		}
		return distance, meta, content
	}

	for i, id := range queryResp.IDs[0] {
		distance, meta, content := group(i)
		src, _ := meta["source"].(string)

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:      id,
				Source:  src,
				Content: content,
			},
			// Lower distance = higher similarity
			Score: 1.0 / (1.0 + distance),
		})
	}

	d.logger.Debug("queried chroma", "results", len(results), "source", source)

	return results, nil
}

// DeleteSource removes every document of the given source.
func (d *ChromaDriver) DeleteSource(ctx context.Context, source string) (int, error) {
	var getResp chromaGetResponse
	if err := d.do(ctx, http.MethodPost, d.collectionURL("get"), chromaGetRequest{
		Where:   map[string]any{"source": source},
		Include: []string{},
	}, &getResp); err != nil {
		return 0, fmt.Errorf("failed to find documents of %s: %w", source, err)
	}

	if len(getResp.IDs) == 0 {
		return 0, nil
	}

	if err := d.do(ctx, http.MethodPost, d.collectionURL("delete"), chromaDeleteRequest{IDs: getResp.IDs}, nil); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "source", source, "count", len(getResp.IDs))

	return len(getResp.IDs), nil
}

// Sources returns the distinct sources stored in the collection.
func (d *ChromaDriver) Sources(ctx context.Context) ([]string, error) {
	var getResp chromaGetResponse
	if err := d.do(ctx, http.MethodPost, d.collectionURL("get"), chromaGetRequest{
		Include: []string{"metadatas"},
	}, &getResp); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	seen := map[string]bool{}
	sources := []string{}
	for _, meta := range getResp.Metadatas {
		src, _ := meta["source"].(string)
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	slices.Sort(sources)

	return sources, nil
}

// Close releases resources held by the driver.
func (d *ChromaDriver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
