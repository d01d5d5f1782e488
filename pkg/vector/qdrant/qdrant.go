// Package qdrant provides a Qdrant vector database driver over its gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/ragchat/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing ragchat chunks.
	DefaultCollectionName = "ragchat"

	defaultPort = 6334

	payloadSource  = "source"
	payloadContent = "content"
	payloadDocID   = "doc_id"

	maxSources = 10000
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the Qdrant gRPC endpoint, either "host:port" or a URL such as
	// "http://localhost:6334". An https URL enables TLS.
	Target string

	// APIKey is sent with every request when set.
	APIKey string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// Dimensions is the embedding size used when creating the collection.
	Dimensions uint
}

// Driver implements vector.Driver on a Qdrant collection. Chunks are stored as
// points whose payload carries the source, the text and the original ID.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and ensures the collection and its source
// payload index exist.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	qc, err := clientConfig(c)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	d := &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant",
		"host", qc.Host,
		"port", qc.Port,
		"collection", collection,
	)

	return d, nil
}

func clientConfig(c Config) (*qdrant.Config, error) {
	target := c.Target
	if target == "" {
		target = "localhost:" + strconv.Itoa(defaultPort)
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		// Plain host:port
		u, err = url.Parse("grpc://" + target)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant target %q: %w", c.Target, err)
		}
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dimensions uint) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %q: %w", vector.ErrConnection, d.collection, err)
	}
	if exists {
		return nil
	}

	if err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}

	wait := true
	if _, err := d.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: d.collection,
		Wait:           &wait,
		FieldName:      payloadSource,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return fmt.Errorf("creating source index: %w", err)
	}

	return nil
}

// pointID maps a chunk ID onto a deterministic UUID, since Qdrant only
// accepts UUIDs or integers as point IDs.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String())
}

func sourceFilter(source string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadSource, source)},
	}
}

// Add upserts documents as points.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadSource:  doc.Source,
				payloadContent: doc.Content,
				payloadDocID:   doc.ID,
			}),
		})
	}

	wait := true
	if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, source string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if source != "" {
		req.Filter = sourceFilter(source)
	}

	points, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:      payload[payloadDocID].GetStringValue(),
				Source:  payload[payloadSource].GetStringValue(),
				Content: payload[payloadContent].GetStringValue(),
			},
			Score: p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results), "source", source)

	return results, nil
}

// DeleteSource removes every point whose payload source matches.
func (d *Driver) DeleteSource(ctx context.Context, source string) (int, error) {
	exact := true
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Filter:         sourceFilter(source),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting points of %s: %w", source, err)
	}
	if count == 0 {
		return 0, nil
	}

	wait := true
	if _, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(sourceFilter(source)),
	}); err != nil {
		return 0, fmt.Errorf("deleting points of %s: %w", source, err)
	}

	d.logger.Debug("deleted documents from qdrant", "source", source, "count", count)

	return int(count), nil
}

// Sources returns the distinct payload sources using a facet count over the
// keyword index.
func (d *Driver) Sources(ctx context.Context) ([]string, error) {
	limit := uint64(maxSources)
	hits, err := d.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: d.collection,
		Key:            payloadSource,
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		if s := h.GetValue().GetStringValue(); s != "" {
			sources = append(sources, s)
		}
	}
	slices.Sort(sources)

	return sources, nil
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
