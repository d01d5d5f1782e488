package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/embeddings"
	"github.com/papercomputeco/ragchat/pkg/embeddings/ollama"
	"github.com/papercomputeco/ragchat/pkg/vector"
)

type embedBody struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive"`
}

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		requests []embedBody
		status   int
		reply    func(in []string) string
	)

	// echo answers with one embedding per input whose first value is the
	// input's length, so order can be checked.
	echo := func(in []string) string {
		vecs := make([]string, len(in))
		for i, s := range in {
			vecs[i] = fmt.Sprintf("[%d,0.5]", len(s))
		}
		return `{"model":"m","embeddings":[` + strings.Join(vecs, ",") + `],"prompt_eval_count":3}`
	}

	BeforeEach(func() {
		requests = nil
		status = http.StatusOK
		reply = echo
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(r.Method).To(Equal(http.MethodPost))

			var body embedBody
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			mu.Lock()
			requests = append(requests, body)
			mu.Unlock()

			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = w.Write([]byte("model not loaded"))
				return
			}
			_, _ = w.Write([]byte(reply(body.Input)))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("embeds a query as a batch of one", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "test-model", KeepAlive: "5m"})
		Expect(err).NotTo(HaveOccurred())

		emb, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{5, 0.5}))
		Expect(requests).To(Equal([]embedBody{{Model: "test-model", Input: []string{"hello"}, KeepAlive: "5m"}}))
	})

	It("uses the default model", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(requests[0].Model).To(Equal(ollama.DefaultEmbeddingModel))
	})

	It("splits chunks into requests of the batch size and keeps their order", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, BatchSize: 2})
		Expect(err).NotTo(HaveOccurred())

		out, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(5))
		for i, v := range out {
			Expect(v[0]).To(Equal(float32(i + 1)))
		}

		Expect(requests).To(HaveLen(3))
		Expect(requests[0].Input).To(Equal([]string{"a", "bb"}))
		Expect(requests[2].Input).To(Equal([]string{"eeeee"}))
	})

	It("sends nothing for an empty batch", func() {
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		out, err := e.EmbedBatch(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
		Expect(requests).To(BeEmpty())
	})

	It("rejects a reply with fewer embeddings than inputs", func() {
		reply = func(_ []string) string { return `{"embeddings":[[0.1,0.2]]}` }
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("expected 2 embeddings, got 1")))
	})

	It("rejects mixed dimensions", func() {
		reply = func(_ []string) string { return `{"embeddings":[[0.1,0.2],[0.3]]}` }
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
	})

	It("wraps non-200 responses in ErrEmbedding", func() {
		status = http.StatusInternalServerError
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, vector.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("model not loaded"))
	})

	It("fails when no embeddings are returned", func() {
		reply = func(_ []string) string { return `{"embeddings":[]}` }
		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(ContainSubstring("no embeddings returned")))
	})

	It("rejects a negative batch size", func() {
		_, err := ollama.NewEmbedder(ollama.EmbedderConfig{BatchSize: -1})
		Expect(err).To(HaveOccurred())
	})
})
