// Package ingest turns uploaded documents into embedded chunks in a
// vector.Driver. It loads text and PDF files, splits them with a Chunker,
// embeds the chunks in one batch and stores them with the file's path as their
// source, so that a retrieval scope is simply the path of an uploaded file.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/vector"
)

var (
	// ErrFileNotFound is returned when a named upload does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidName is returned for upload names that are empty or try to
	// leave the upload directory.
	ErrInvalidName = errors.New("invalid file name")
)

type Config struct {
	// UploadDir holds the uploaded documents. It is created when missing.
	UploadDir string

	Embedder embeddings.Embedder
	Driver   vector.Driver

	// Chunker defaults to NewChunker(DefaultMaxChunkChars, DefaultChunkOverlap).
	Chunker *Chunker

	Logger *slog.Logger
}

// Ingester manages the upload directory and the chunks derived from it.
type Ingester struct {
	dir      string
	embedder embeddings.Embedder
	driver   vector.Driver
	chunker  *Chunker
	logger   *slog.Logger

	mu    sync.Mutex
	stamp map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func New(c Config) (*Ingester, error) {
	if c.UploadDir == "" {
		return nil, errors.New("upload dir is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if c.Chunker == nil {
		c.Chunker = NewChunker(DefaultMaxChunkChars, DefaultChunkOverlap)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	dir, err := filepath.Abs(c.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("resolving upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	return &Ingester{
		dir:      dir,
		embedder: c.Embedder,
		driver:   c.Driver,
		chunker:  c.Chunker,
		logger:   c.Logger,
		stamp:    make(map[string]fileStamp),
	}, nil
}

// Dir returns the absolute upload directory.
func (i *Ingester) Dir() string {
	return i.dir
}

// Path resolves an upload name to its absolute path inside the upload dir.
func (i *Ingester) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(i.dir, name), nil
}

// Save writes r to the upload directory under name, replacing any existing
// file, and returns its path.
func (i *Ingester) Save(name string, r io.Reader) (string, error) {
	path, err := i.Path(name)
	if err != nil {
		return "", err
	}
	if !Supported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	tmp, err := os.CreateTemp(i.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}
	return path, nil
}

// IngestFile (re)indexes the document at path. Chunks from a previous
// ingestion of the same path are removed first. It returns the IDs of the
// stored chunks.
func (i *Ingester) IngestFile(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	text, err := Load(path)
	if err != nil {
		return nil, err
	}

	chunks := i.chunker.Split(text)
	docs := make([]vector.Document, 0, len(chunks))
	if len(chunks) > 0 {
		embs, err := i.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", vector.ErrEmbedding, filepath.Base(path), err)
		}
		if err := embeddings.CheckBatch(len(chunks), embs); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", vector.ErrEmbedding, filepath.Base(path), err)
		}
		prefix := chunkPrefix(path)
		for n, chunk := range chunks {
			docs = append(docs, vector.Document{
				ID:        fmt.Sprintf("%s-%d", prefix, n),
				Source:    path,
				Content:   chunk,
				Embedding: embs[n],
			})
		}
	}

	if _, err := i.driver.DeleteSource(ctx, path); err != nil {
		return nil, fmt.Errorf("removing previous chunks of %s: %w", path, err)
	}
	if len(docs) > 0 {
		if err := i.driver.Add(ctx, docs); err != nil {
			return nil, fmt.Errorf("storing chunks of %s: %w", path, err)
		}
	}

	i.mu.Lock()
	i.stamp[path] = fileStamp{size: info.Size(), modTime: info.ModTime()}
	i.mu.Unlock()

	ids := make([]string, len(docs))
	for n, d := range docs {
		ids[n] = d.ID
	}

	i.logger.Info("document ingested", "source", path, "chunks", len(ids))
	return ids, nil
}

// IngestIfChanged ingests path unless it was already ingested with the same
// size and modification time. The bool reports whether ingestion ran.
func (i *Ingester) IngestIfChanged(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrFileNotFound, filepath.Base(path))
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	i.mu.Lock()
	prev, ok := i.stamp[path]
	i.mu.Unlock()
	if ok && prev.size == info.Size() && prev.modTime.Equal(info.ModTime()) {
		return false, nil
	}

	if _, err := i.IngestFile(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveChunks deletes the chunks of path without touching the file.
func (i *Ingester) RemoveChunks(ctx context.Context, path string) (int, error) {
	n, err := i.driver.DeleteSource(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("removing chunks of %s: %w", path, err)
	}

	i.mu.Lock()
	delete(i.stamp, path)
	i.mu.Unlock()

	i.logger.Info("document chunks removed", "source", path, "chunks", n)
	return n, nil
}

// DeleteFile removes the named upload and its chunks.
func (i *Ingester) DeleteFile(ctx context.Context, name string) (int, error) {
	path, err := i.Path(name)
	if err != nil {
		return 0, err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return 0, fmt.Errorf("removing %s: %w", name, err)
	}

	return i.RemoveChunks(ctx, path)
}

// ListFiles returns the names of the uploaded documents, sorted.
func (i *Ingester) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil, fmt.Errorf("listing upload dir: %w", err)
	}

	files := []string{}
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)
	return files, nil
}

// IngestAll ingests every supported upload that changed since it was last
// ingested. Failures are logged and counted, not returned.
func (i *Ingester) IngestAll(ctx context.Context) (ingested, failed int, err error) {
	files, err := i.ListFiles()
	if err != nil {
		return 0, 0, err
	}

	for _, name := range files {
		if ctx.Err() != nil {
			return ingested, failed, ctx.Err()
		}
		path := filepath.Join(i.dir, name)
		if !Supported(path) {
			continue
		}
		ran, err := i.IngestIfChanged(ctx, path)
		if err != nil {
			failed++
			i.logger.Warn("ingest failed", "source", path, "error", err)
			continue
		}
		if ran {
			ingested++
		}
	}
	return ingested, failed, nil
}

func chunkPrefix(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
