package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/ragchat/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RAGCHAT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RAGCHAT_API_LISTEN, RAGCHAT_LLM_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: RAGCHAT_WORKFLOW_POLICY, RAGCHAT_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("RAGCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", d.Storage.RedisDB)

	// Workflow
	v.SetDefault("workflow.policy", d.Workflow.Policy)
	v.SetDefault("retrieval.k", d.Retrieval.K)

	// Web search
	v.SetDefault("web_search.provider", d.WebSearch.Provider)
	v.SetDefault("web_search.target", d.WebSearch.Target)
	v.SetDefault("web_search.max_results", d.WebSearch.MaxResults)
	v.SetDefault("web_search.search_depth", d.WebSearch.SearchDepth)
	v.SetDefault("web_search.include_answer", d.WebSearch.IncludeAnswer)
	v.SetDefault("web_search.include_raw_content", d.WebSearch.IncludeRawContent)
	v.SetDefault("web_search.include_images", d.WebSearch.IncludeImages)

	// Generator and grader
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.target", d.LLM.Target)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("grader.provider", d.Grader.Provider)
	v.SetDefault("grader.target", d.Grader.Target)
	v.SetDefault("grader.model", d.Grader.Model)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	// Ingest
	v.SetDefault("ingest.upload_dir", d.Ingest.UploadDir)
	v.SetDefault("ingest.max_chunk_chars", d.Ingest.MaxChunkChars)
	v.SetDefault("ingest.chunk_overlap", d.Ingest.ChunkOverlap)
	v.SetDefault("ingest.workers", d.Ingest.Workers)
	v.SetDefault("ingest.watch", d.Ingest.Watch)

	// API and client
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.target", d.EventStream.Target)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Log
	v.SetDefault("log.dir", d.Log.Dir)
}

// FromViper materializes the resolved values of v (flags, env, file and
// defaults) into a Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
			RedisAddr:   v.GetString("storage.redis_addr"),
			RedisDB:     v.GetInt("storage.redis_db"),
		},
		Workflow:  WorkflowConfig{Policy: v.GetString("workflow.policy")},
		Retrieval: RetrievalConfig{K: v.GetUint("retrieval.k")},
		WebSearch: WebSearchConfig{
			Provider:          v.GetString("web_search.provider"),
			Target:            v.GetString("web_search.target"),
			MaxResults:        v.GetUint("web_search.max_results"),
			SearchDepth:       v.GetString("web_search.search_depth"),
			IncludeAnswer:     v.GetBool("web_search.include_answer"),
			IncludeRawContent: v.GetBool("web_search.include_raw_content"),
			IncludeImages:     v.GetBool("web_search.include_images"),
		},
		LLM: LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Target:      v.GetString("llm.target"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
		},
		Grader: GraderConfig{
			Provider: v.GetString("grader.provider"),
			Target:   v.GetString("grader.target"),
			Model:    v.GetString("grader.model"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			BatchSize:  v.GetUint("embedding.batch_size"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Ingest: IngestConfig{
			UploadDir:     v.GetString("ingest.upload_dir"),
			MaxChunkChars: v.GetUint("ingest.max_chunk_chars"),
			ChunkOverlap:  v.GetUint("ingest.chunk_overlap"),
			Workers:       v.GetUint("ingest.workers"),
			Watch:         v.GetBool("ingest.watch"),
		},
		API:    APIConfig{Listen: v.GetString("api.listen")},
		Client: ClientConfig{APITarget: v.GetString("client.api_target")},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Target:   v.GetString("eventstream.target"),
			Topic:    v.GetString("eventstream.topic"),
		},
		Log: LogConfig{Dir: v.GetString("log.dir")},
	}
}
