package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			writeConfig(`version = 0

[workflow]
policy = "grading"

[llm]
provider = "anthropic"
target = "https://api.anthropic.com"
model = "claude-3-5-haiku-latest"
temperature = 0.2

[storage]
provider = "postgres"
postgres_dsn = "postgres://localhost/ragchat"

[web_search]
max_results = 3
include_answer = true
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Workflow.Policy).To(Equal("grading"))
			Expect(cfg.LLM.Provider).To(Equal("anthropic"))
			Expect(cfg.LLM.Model).To(Equal("claude-3-5-haiku-latest"))
			Expect(cfg.LLM.Temperature).To(BeNumerically("~", 0.2))
			Expect(cfg.Storage.Provider).To(Equal("postgres"))
			Expect(cfg.Storage.PostgresDSN).To(Equal("postgres://localhost/ragchat"))
			Expect(cfg.WebSearch.MaxResults).To(Equal(uint(3)))
			Expect(cfg.WebSearch.IncludeAnswer).To(BeTrue())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[retrieval]
k = 8
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Retrieval.K).To(Equal(uint(8)))
			Expect(cfg.Workflow.Policy).To(Equal(defaults.Workflow.Policy))
			Expect(cfg.WebSearch.Target).To(Equal(defaults.WebSearch.Target))
			Expect(cfg.Ingest.MaxChunkChars).To(Equal(defaults.Ingest.MaxChunkChars))
			Expect(cfg.EventStream.Topic).To(Equal(defaults.EventStream.Topic))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(`this is not [valid toml`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig(`version = 999`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Workflow.Policy = config.PolicyGrading
			cfg.VectorStore.Provider = "qdrant"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("sets and reads back keys",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())

				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry("string", "llm.model", "mistral"),
			Entry("uint", "retrieval.k", "7"),
			Entry("bool", "ingest.watch", "true"),
			Entry("float", "llm.temperature", "0.7"),
			Entry("int", "storage.redis_db", "3"),
			Entry("policy", "workflow.policy", "grading"),
		)

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("proxy.upstream", "x")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("uint", "retrieval.k", "many"),
			Entry("bool", "web_search.include_images", "maybe"),
			Entry("float", "llm.temperature", "warm"),
			Entry("policy", "workflow.policy", "random"),
		)

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("llm.provider", "openai")).To(Succeed())
			Expect(c.SetConfigValue("llm.model", "gpt-4o-mini")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Provider).To(Equal("openai"))
			Expect(cfg.LLM.Model).To(Equal("gpt-4o-mini"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(config.NewDefaultConfig().API.Listen))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("grader.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key exactly once in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(40))
		Expect(keys[0]).To(Equal("storage.provider"))
		Expect(keys).To(ContainElements("workflow.policy", "web_search.search_depth", "eventstream.topic", "log.dir"))

		seen := map[string]bool{}
		for _, k := range keys {
			Expect(seen[k]).To(BeFalse(), k)
			seen[k] = true
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
	})

	It("rejects keys from other sections", func() {
		Expect(config.IsValidConfigKey("proxy.listen")).To(BeFalse())
		Expect(config.IsValidConfigKey("")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("returns the openai preset", func() {
		cfg, err := config.PresetConfig("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("openai"))
		Expect(cfg.LLM.Target).To(Equal("https://api.openai.com"))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
	})

	It("returns the anthropic preset", func() {
		cfg, err := config.PresetConfig("Anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("anthropic"))
		Expect(cfg.LLM.Target).To(Equal("https://api.anthropic.com"))
	})

	It("returns the ollama preset with embedding defaults", func() {
		cfg, err := config.PresetConfig("ollama")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("bedrock")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
		Expect(config.ValidPresetNames()).To(ConsistOf("openai", "anthropic", "ollama"))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Workflow.Policy).To(BeEmpty())
	})

	It("parses eventstream settings", func() {
		cfg, err := config.ParseConfigTOML([]byte(`[eventstream]
provider = "nats"
target = "nats://localhost:4222"
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.EventStream.Provider).To(Equal("nats"))
		Expect(cfg.EventStream.Target).To(Equal("nats://localhost:4222"))
	})
})
