package tavily_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/websearch/tavily"
)

var _ = Describe("Searcher", func() {
	var (
		server   *httptest.Server
		received map[string]any
		auth     string
		status   int
		body     string
	)

	BeforeEach(func() {
		status = http.StatusOK
		body = `{"query":"q","results":[{"title":"t","url":"https://example.com","content":"The answer is 42.","score":0.9},{"content":"second"}]}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/search"))
			auth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newSearcher := func() *tavily.Searcher {
		s, err := tavily.New(tavily.Config{BaseURL: server.URL, APIKey: "tvly-test"})
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("requires an API key", func() {
		_, err := tavily.New(tavily.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("returns the first result's content", func() {
		out, err := newSearcher().Search(context.Background(), "meaning of life")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("The answer is 42."))
		Expect(auth).To(Equal("Bearer tvly-test"))
		Expect(received["query"]).To(Equal("meaning of life"))
		Expect(received["max_results"]).To(BeNumerically("==", tavily.DefaultMaxResults))
		Expect(received["search_depth"]).To(Equal(tavily.DefaultSearchDepth))
	})

	It("returns an empty string when there are no results", func() {
		body = `{"query":"q","results":[]}`
		out, err := newSearcher().Search(context.Background(), "nothing")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("wraps HTTP failures in ErrSearch", func() {
		status = http.StatusUnauthorized
		body = `{"detail":"invalid key"}`
		_, err := newSearcher().Search(context.Background(), "q")
		Expect(errors.Is(err, tavily.ErrSearch)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("401"))
	})
})
