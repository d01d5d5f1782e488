package config

// Routing policies accepted by workflow.policy.
const (
	PolicyGrading = "grading"
	PolicyFanout  = "fanout"
)

const (
	defaultProvider = "ollama"
	defaultUpstream = "http://localhost:11434"

	defaultStorageProvider = "sqlite"
	defaultRedisAddr       = "localhost:6379"

	defaultPolicy     = PolicyFanout
	defaultRetrievalK = 4

	defaultWebSearchProvider = "tavily"
	defaultWebSearchTarget   = "https://api.tavily.com"
	defaultWebSearchResults  = 1
	defaultWebSearchDepth    = "basic"

	defaultLLMModel = "llama3.2"

	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingBatchSize  = 32

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "ragchat"

	defaultMaxChunkChars = 1000
	defaultChunkOverlap  = 200
	defaultIngestWorkers = 2

	defaultAPIListen       = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultEventStreamProvider = "none"
	defaultEventStreamTopic    = "ragchat.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:  defaultStorageProvider,
			RedisAddr: defaultRedisAddr,
		},
		Workflow: WorkflowConfig{
			Policy: defaultPolicy,
		},
		Retrieval: RetrievalConfig{
			K: defaultRetrievalK,
		},
		WebSearch: WebSearchConfig{
			Provider:    defaultWebSearchProvider,
			Target:      defaultWebSearchTarget,
			MaxResults:  defaultWebSearchResults,
			SearchDepth: defaultWebSearchDepth,
		},
		LLM: LLMConfig{
			Provider: defaultProvider,
			Target:   defaultUpstream,
			Model:    defaultLLMModel,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultProvider,
			Target:     defaultUpstream,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  defaultEmbeddingBatchSize,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Ingest: IngestConfig{
			MaxChunkChars: defaultMaxChunkChars,
			ChunkOverlap:  defaultChunkOverlap,
			Workers:       defaultIngestWorkers,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
