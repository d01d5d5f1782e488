package servecmder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/papercomputeco/ragchat/api"
	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/api/mcp"
	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	checkpointutils "github.com/papercomputeco/ragchat/pkg/checkpoint/utils"
	"github.com/papercomputeco/ragchat/pkg/config"
	"github.com/papercomputeco/ragchat/pkg/credentials"
	"github.com/papercomputeco/ragchat/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/ragchat/pkg/embeddings/utils"
	"github.com/papercomputeco/ragchat/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/ragchat/pkg/eventstream/utils"
	generatorutils "github.com/papercomputeco/ragchat/pkg/generator/utils"
	"github.com/papercomputeco/ragchat/pkg/grader"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/retriever/vectorstore"
	"github.com/papercomputeco/ragchat/pkg/vector"
	vectorutils "github.com/papercomputeco/ragchat/pkg/vector/utils"
	websearchutils "github.com/papercomputeco/ragchat/pkg/websearch/utils"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

const (
	defaultCheckpointDB = "ragchat.db"
	defaultVectorDB     = "vectors.db"
	defaultUploadDir    = "uploads"
)

// stack is every long-lived component of a running server.
type stack struct {
	store     checkpoint.Store
	driver    vector.Driver
	publisher eventstream.Publisher
	engine    *workflow.Engine
	ingester  *ingest.Ingester
	registry  *prometheus.Registry
	server    *api.Server

	// pool and watcher are nil unless ingest.watch is enabled.
	pool    *ingest.Pool
	watcher *ingest.Watcher
}

// newStack builds the server components from cfg. Paths left empty in cfg
// default to files inside the resolved .ragchat directory.
func newStack(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*stack, error) {
	if err := resolvePaths(cfg, configDir); err != nil {
		return nil, err
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	s := &stack{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	s.store, err = checkpointutils.NewStore(ctx, &checkpointutils.NewStoreOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   cfg.Storage.SQLitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		RedisAddr:    cfg.Storage.RedisAddr,
		RedisDB:      cfg.Storage.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}
	logger.Info("using checkpoint store", "provider", cfg.Storage.Provider)

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		BatchSize:    cfg.Embedding.BatchSize,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	s.driver, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	logger.Info("using vector store", "provider", cfg.VectorStore.Provider, "target", cfg.VectorStore.Target)

	docs, err := vectorstore.New(vectorstore.Config{Embedder: embedder, Driver: s.driver, Logger: logger})
	if err != nil {
		return nil, err
	}

	searcher, err := websearchutils.NewSearcher(&websearchutils.NewSearcherOpts{
		ProviderType:      cfg.WebSearch.Provider,
		Target:            cfg.WebSearch.Target,
		Credentials:       creds,
		MaxResults:        cfg.WebSearch.MaxResults,
		SearchDepth:       cfg.WebSearch.SearchDepth,
		IncludeAnswer:     cfg.WebSearch.IncludeAnswer,
		IncludeRawContent: cfg.WebSearch.IncludeRawContent,
		IncludeImages:     cfg.WebSearch.IncludeImages,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating web searcher: %w", err)
	}

	gen, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{
		ProviderType: cfg.LLM.Provider,
		Target:       cfg.LLM.Target,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Credentials:  creds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	// The grader inherits unset fields from the llm section and always
	// runs deterministically.
	gradeGen, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{
		ProviderType: cmp.Or(cfg.Grader.Provider, cfg.LLM.Provider),
		Target:       cmp.Or(cfg.Grader.Target, cfg.LLM.Target),
		Model:        cmp.Or(cfg.Grader.Model, cfg.LLM.Model),
		Credentials:  creds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating grader: %w", err)
	}

	s.publisher, err = eventstreamutils.NewPublisher(ctx, &eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Target:       cfg.EventStream.Target,
		Topic:        cfg.EventStream.Topic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.engine, err = workflow.New(workflow.Config{
		Store:     s.store,
		Retriever: docs,
		Searcher:  searcher,
		Generator: gen,
		Grader:    grader.NewLLMGrader(gradeGen, logger),
		Publisher: s.publisher,
		Policy:    workflow.Policy(cfg.Workflow.Policy),
		K:         int(cfg.Retrieval.K),
		Metrics:   workflow.NewMetrics(s.registry),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating workflow engine: %w", err)
	}

	s.ingester, err = ingest.New(ingest.Config{
		UploadDir: cfg.Ingest.UploadDir,
		Embedder:  embedder,
		Driver:    s.driver,
		Chunker:   ingest.NewChunker(int(cfg.Ingest.MaxChunkChars), int(cfg.Ingest.ChunkOverlap)),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}

	if cfg.Ingest.Watch {
		s.pool, err = ingest.NewPool(&ingest.PoolConfig{
			Ingester:   s.ingester,
			NumWorkers: cfg.Ingest.Workers,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating ingest pool: %w", err)
		}
		s.watcher = ingest.NewWatcher(s.ingester.Dir(), s.pool, 0, logger)
	}

	service, err := conversations.NewService(s.engine, s.store, s.ingester)
	if err != nil {
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{Service: service, Ingester: s.ingester, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	s.server, err = api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Engine:     s.engine,
		Store:      s.store,
		Ingester:   s.ingester,
		Gatherer:   s.registry,
		MCPHandler: mcpServer.Handler(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	ok = true
	return s, nil
}

// syncUploads enqueues every uploaded file the vector store holds no chunks
// for, covering files dropped in while the server was down.
func (s *stack) syncUploads(ctx context.Context) (int, error) {
	if s.pool == nil {
		return 0, nil
	}

	files, err := s.ingester.ListFiles()
	if err != nil {
		return 0, err
	}

	sources, err := s.driver.Sources(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing vector sources: %w", err)
	}

	queued := 0
	for _, name := range files {
		path, err := s.ingester.Path(name)
		if err != nil {
			continue
		}
		if _, found := slices.BinarySearch(sources, path); found {
			continue
		}
		if s.pool.Enqueue(ingest.Job{Op: ingest.OpIngest, Path: path}) {
			queued++
		}
	}
	return queued, nil
}

// Close releases the components in reverse dependency order.
func (s *stack) Close() error {
	var errs []error
	if s.pool != nil {
		s.pool.Close()
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.driver != nil {
		errs = append(errs, s.driver.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

func resolvePaths(cfg *config.Config, configDir string) error {
	ddm := dotdir.NewManager()

	if cfg.Storage.Provider == "sqlite" && cfg.Storage.SQLitePath == "" {
		path, err := ddm.File(configDir, defaultCheckpointDB)
		if err != nil {
			return err
		}
		cfg.Storage.SQLitePath = path
	}

	if cfg.VectorStore.Provider == "sqlite" && cfg.VectorStore.Target == "" {
		path, err := ddm.File(configDir, defaultVectorDB)
		if err != nil {
			return err
		}
		cfg.VectorStore.Target = path
	}

	if cfg.Ingest.UploadDir == "" {
		dir, err := ddm.Subdir(configDir, defaultUploadDir)
		if err != nil {
			return err
		}
		cfg.Ingest.UploadDir = dir
	}

	return nil
}
