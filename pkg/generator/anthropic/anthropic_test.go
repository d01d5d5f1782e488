package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/generator/anthropic"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

var _ = Describe("Generator", func() {
	var (
		server   *httptest.Server
		received map[string]any
		headers  http.Header
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			headers = r.Header.Clone()
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			_, _ = w.Write([]byte(`{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"model": "claude-3-5-haiku-latest",
				"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there."}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 10, "output_tokens": 4}
			}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("lifts system messages and sends the required headers", func() {
		g, err := anthropic.New(anthropic.Config{BaseURL: server.URL, APIKey: "sk-ant"})
		Expect(err).NotTo(HaveOccurred())

		resp, err := g.Generate(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "first"),
			llm.NewTextMessage(llm.RoleSystem, "RAG Context: a"),
			llm.NewTextMessage(llm.RoleSystem, "Highlight"),
			llm.NewTextMessage(llm.RoleUser, "second"),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(headers.Get("x-api-key")).To(Equal("sk-ant"))
		Expect(headers.Get("anthropic-version")).To(Equal("2023-06-01"))
		Expect(received["system"]).To(Equal("RAG Context: a\n\nHighlight"))
		Expect(received["messages"]).To(HaveLen(2))
		Expect(received["max_tokens"]).To(BeNumerically("==", anthropic.DefaultMaxTokens))

		Expect(resp.Message.GetText()).To(Equal("Hello there."))
		Expect(resp.StopReason).To(Equal("end_turn"))
		Expect(resp.Usage.TotalTokens).To(Equal(14))
	})
})
