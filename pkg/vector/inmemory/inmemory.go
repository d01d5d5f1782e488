// Package inmemory provides a brute-force cosine similarity vector driver
// for tests and small deployments.
package inmemory

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/papercomputeco/ragchat/pkg/vector"
)

// Driver implements vector.Driver over an in-memory map.
type Driver struct {
	mu   sync.RWMutex
	docs map[string]vector.Document
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]vector.Document),
	}
}

// Add stores or replaces documents.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		doc.Embedding = slices.Clone(doc.Embedding)
		d.docs[doc.ID] = doc
	}
	return nil
}

// Query ranks every stored document by cosine similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, source string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, doc := range d.docs {
		if source != "" && doc.Source != source {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    cosine(embedding, doc.Embedding),
		})
	}
	d.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteSource removes every document of the given source.
func (d *Driver) DeleteSource(_ context.Context, source string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for id, doc := range d.docs {
		if doc.Source == source {
			delete(d.docs, id)
			n++
		}
	}
	return n, nil
}

// Sources returns the distinct sources stored.
func (d *Driver) Sources(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := map[string]bool{}
	sources := []string{}
	for _, doc := range d.docs {
		if !seen[doc.Source] {
			seen[doc.Source] = true
			sources = append(sources, doc.Source)
		}
	}
	slices.Sort(sources)
	return sources, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
