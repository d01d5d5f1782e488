package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent ragchat configuration stored as config.toml
// in the .ragchat/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Workflow    WorkflowConfig    `toml:"workflow"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	WebSearch   WebSearchConfig   `toml:"web_search"`
	LLM         LLMConfig         `toml:"llm"`
	Grader      GraderConfig      `toml:"grader"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Ingest      IngestConfig      `toml:"ingest"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Log         LogConfig         `toml:"log"`
}

// StorageConfig selects the checkpoint store backend.
// Provider is one of "sqlite", "postgres", "redis" or "inmemory".
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisDB     int    `toml:"redis_db,omitempty"`
}

// WorkflowConfig holds engine settings.
// Policy is "grading" or "fanout".
type WorkflowConfig struct {
	Policy string `toml:"policy,omitempty"`
}

// RetrievalConfig holds document retrieval settings.
type RetrievalConfig struct {
	K uint `toml:"k,omitempty"`
}

// WebSearchConfig holds web search provider settings.
type WebSearchConfig struct {
	Provider          string `toml:"provider,omitempty"`
	Target            string `toml:"target,omitempty"`
	MaxResults        uint   `toml:"max_results,omitempty"`
	SearchDepth       string `toml:"search_depth,omitempty"`
	IncludeAnswer     bool   `toml:"include_answer,omitempty"`
	IncludeRawContent bool   `toml:"include_raw_content,omitempty"`
	IncludeImages     bool   `toml:"include_images,omitempty"`
}

// LLMConfig holds generator settings.
type LLMConfig struct {
	Provider    string  `toml:"provider,omitempty"`
	Target      string  `toml:"target,omitempty"`
	Model       string  `toml:"model,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
}

// GraderConfig holds relevance grader settings. Empty fields inherit from
// the llm section.
type GraderConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// BatchSize caps the number of chunks sent per embedding request.
	BatchSize uint `toml:"batch_size,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	UploadDir     string `toml:"upload_dir,omitempty"`
	MaxChunkChars uint   `toml:"max_chunk_chars,omitempty"`
	ChunkOverlap  uint   `toml:"chunk_overlap,omitempty"`
	Workers       uint   `toml:"workers,omitempty"`
	Watch         bool   `toml:"watch,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (ragchat chat, ragchat threads, ragchat ingest).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventStreamConfig selects where turn completion events are published.
// Provider is "none", "kafka" or "nats".
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// LogConfig holds server log settings. When Dir is set, ragchat serve also
// writes rotated JSON logs there.
type LogConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.redis_addr":   stringKey(func(c *Config) *string { return &c.Storage.RedisAddr }),
	"storage.redis_db": {
		get: func(c *Config) string { return strconv.Itoa(c.Storage.RedisDB) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for storage.redis_db: %w", err)
			}
			c.Storage.RedisDB = n
			return nil
		},
	},

	"workflow.policy": {
		get: func(c *Config) string { return c.Workflow.Policy },
		set: func(c *Config, v string) error {
			if v != PolicyGrading && v != PolicyFanout {
				return fmt.Errorf("invalid value for workflow.policy: %q (expected %s or %s)", v, PolicyGrading, PolicyFanout)
			}
			c.Workflow.Policy = v
			return nil
		},
	},

	"retrieval.k": uintKey("retrieval.k", func(c *Config) *uint { return &c.Retrieval.K }),

	"web_search.provider":            stringKey(func(c *Config) *string { return &c.WebSearch.Provider }),
	"web_search.target":              stringKey(func(c *Config) *string { return &c.WebSearch.Target }),
	"web_search.max_results":         uintKey("web_search.max_results", func(c *Config) *uint { return &c.WebSearch.MaxResults }),
	"web_search.search_depth":        stringKey(func(c *Config) *string { return &c.WebSearch.SearchDepth }),
	"web_search.include_answer":      boolKey("web_search.include_answer", func(c *Config) *bool { return &c.WebSearch.IncludeAnswer }),
	"web_search.include_raw_content": boolKey("web_search.include_raw_content", func(c *Config) *bool { return &c.WebSearch.IncludeRawContent }),
	"web_search.include_images":      boolKey("web_search.include_images", func(c *Config) *bool { return &c.WebSearch.IncludeImages }),

	"llm.provider": stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.target":   stringKey(func(c *Config) *string { return &c.LLM.Target }),
	"llm.model":    stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.LLM.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for llm.temperature: %w", err)
			}
			c.LLM.Temperature = f
			return nil
		},
	},

	"grader.provider": stringKey(func(c *Config) *string { return &c.Grader.Provider }),
	"grader.target":   stringKey(func(c *Config) *string { return &c.Grader.Target }),
	"grader.model":    stringKey(func(c *Config) *string { return &c.Grader.Model }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.batch_size": uintKey("embedding.batch_size", func(c *Config) *uint { return &c.Embedding.BatchSize }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"ingest.upload_dir":      stringKey(func(c *Config) *string { return &c.Ingest.UploadDir }),
	"ingest.max_chunk_chars": uintKey("ingest.max_chunk_chars", func(c *Config) *uint { return &c.Ingest.MaxChunkChars }),
	"ingest.chunk_overlap":   uintKey("ingest.chunk_overlap", func(c *Config) *uint { return &c.Ingest.ChunkOverlap }),
	"ingest.workers":         uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.watch":           boolKey("ingest.watch", func(c *Config) *bool { return &c.Ingest.Watch }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.target":   stringKey(func(c *Config) *string { return &c.EventStream.Target }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"log.dir": stringKey(func(c *Config) *string { return &c.Log.Dir }),
}
