package embeddingutils_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/embeddings/ollama"
	embeddingutils "github.com/papercomputeco/ragchat/pkg/embeddings/utils"
)

var _ = Describe("NewEmbedder", func() {
	var server *httptest.Server

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
		}))
		DeferCleanup(server.Close)
	})

	It("defaults to ollama", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{TargetURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ollama.Embedder{}))
	})

	It("enforces the configured dimensions", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			TargetURL:    server.URL,
			Dimensions:   768,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("model returned 3, store expects 768")))

		_, err = e.EmbedBatch(context.Background(), []string{"hello"})
		Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
	})

	It("passes matching embeddings through", func() {
		e, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{TargetURL: server.URL, Dimensions: 3})
		Expect(err).NotTo(HaveOccurred())

		v, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(HaveLen(3))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError("unsupported embedding provider: word2vec"))
	})
})
