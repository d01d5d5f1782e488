package generatorutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/generator/anthropic"
	"github.com/papercomputeco/ragchat/pkg/generator/ollama"
	"github.com/papercomputeco/ragchat/pkg/generator/openai"
	generatorutils "github.com/papercomputeco/ragchat/pkg/generator/utils"
)

var _ = Describe("NewGenerator", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("OPENAI_API_KEY", "")
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
	})

	It("builds an ollama generator without a key", func() {
		g, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{ProviderType: "ollama"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&ollama.Generator{}))
	})

	It("builds an openai generator with an explicit key", func() {
		g, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{ProviderType: "openai", APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&openai.Generator{}))
	})

	It("resolves the anthropic key from the environment", func() {
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
		g, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{ProviderType: "anthropic"})
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(BeAssignableToTypeOf(&anthropic.Generator{}))
	})

	It("fails for hosted providers without a key", func() {
		_, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{ProviderType: "openai"})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := generatorutils.NewGenerator(&generatorutils.NewGeneratorOpts{ProviderType: "bogus"})
		Expect(err).To(MatchError(ContainSubstring("unsupported llm provider: bogus")))
	})
})
