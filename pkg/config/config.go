package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/ragchat/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .ragchat/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"storage.provider",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"storage.redis_addr",
		"storage.redis_db",
		"workflow.policy",
		"retrieval.k",
		"web_search.provider",
		"web_search.target",
		"web_search.max_results",
		"web_search.search_depth",
		"web_search.include_answer",
		"web_search.include_raw_content",
		"web_search.include_images",
		"llm.provider",
		"llm.target",
		"llm.model",
		"llm.temperature",
		"grader.provider",
		"grader.target",
		"grader.model",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"embedding.batch_size",
		"vector_store.provider",
		"vector_store.target",
		"vector_store.collection",
		"ingest.upload_dir",
		"ingest.max_chunk_chars",
		"ingest.chunk_overlap",
		"ingest.workers",
		"ingest.watch",
		"api.listen",
		"client.api_target",
		"eventstream.provider",
		"eventstream.target",
		"eventstream.topic",
		"log.dir",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .ragchat/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .ragchat/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
// Booleans and the temperature are left as loaded since their zero value is
// a meaningful setting.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	setIfEmpty(&cfg.Storage.Provider, d.Storage.Provider)
	setIfEmpty(&cfg.Storage.RedisAddr, d.Storage.RedisAddr)

	setIfEmpty(&cfg.Workflow.Policy, d.Workflow.Policy)
	setIfZero(&cfg.Retrieval.K, d.Retrieval.K)

	setIfEmpty(&cfg.WebSearch.Provider, d.WebSearch.Provider)
	setIfEmpty(&cfg.WebSearch.Target, d.WebSearch.Target)
	setIfZero(&cfg.WebSearch.MaxResults, d.WebSearch.MaxResults)
	setIfEmpty(&cfg.WebSearch.SearchDepth, d.WebSearch.SearchDepth)

	setIfEmpty(&cfg.LLM.Provider, d.LLM.Provider)
	setIfEmpty(&cfg.LLM.Target, d.LLM.Target)
	setIfEmpty(&cfg.LLM.Model, d.LLM.Model)

	setIfEmpty(&cfg.Embedding.Provider, d.Embedding.Provider)
	setIfEmpty(&cfg.Embedding.Target, d.Embedding.Target)
	setIfEmpty(&cfg.Embedding.Model, d.Embedding.Model)
	setIfZero(&cfg.Embedding.Dimensions, d.Embedding.Dimensions)
	setIfZero(&cfg.Embedding.BatchSize, d.Embedding.BatchSize)

	setIfEmpty(&cfg.VectorStore.Provider, d.VectorStore.Provider)
	setIfEmpty(&cfg.VectorStore.Collection, d.VectorStore.Collection)

	setIfZero(&cfg.Ingest.MaxChunkChars, d.Ingest.MaxChunkChars)
	setIfZero(&cfg.Ingest.ChunkOverlap, d.Ingest.ChunkOverlap)
	setIfZero(&cfg.Ingest.Workers, d.Ingest.Workers)

	setIfEmpty(&cfg.API.Listen, d.API.Listen)
	setIfEmpty(&cfg.Client.APITarget, d.Client.APITarget)

	setIfEmpty(&cfg.EventStream.Provider, d.EventStream.Provider)
	setIfEmpty(&cfg.EventStream.Topic, d.EventStream.Topic)
}

func setIfEmpty(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setIfZero(field *uint, def uint) {
	if *field == 0 {
		*field = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .ragchat/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named provider preset.
// Supported presets: "openai", "anthropic", "ollama". Presets only change the
// generator; embeddings stay on a local Ollama since neither hosted preset
// ships an embedding model ragchat drives.
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.LLM = LLMConfig{
			Provider: "openai",
			Target:   "https://api.openai.com",
			Model:    "gpt-4o-mini",
		}

	case "anthropic":
		cfg.LLM = LLMConfig{
			Provider: "anthropic",
			Target:   "https://api.anthropic.com",
			Model:    "claude-3-5-haiku-latest",
		}

	case "ollama":
		cfg.Embedding.Model = "nomic-embed-text"

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: openai, anthropic, ollama)", name)
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
