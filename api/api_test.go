package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/llm"
	"github.com/papercomputeco/ragchat/pkg/logger"
	testutils "github.com/papercomputeco/ragchat/pkg/utils/test"
	vectorinmemory "github.com/papercomputeco/ragchat/pkg/vector/inmemory"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

func decode[T any](resp *http.Response) T {
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}

func jsonRequest(method, url string, body any) *http.Request {
	data, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(name, content string) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write([]byte(content))
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req, err := http.NewRequest(http.MethodPost, "/v1/files", &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var _ = Describe("Server", func() {
	var (
		store    *inmemory.Store
		ret      *testutils.StubRetriever
		searcher *testutils.StubSearcher
		gen      *testutils.StubGenerator
		embedder *testutils.MockEmbedder
		vectors  *vectorinmemory.Driver
		ing      *ingest.Ingester
		registry *prometheus.Registry
		server   *Server
	)

	newServer := func(policy workflow.Policy) *Server {
		metrics := workflow.NewMetrics(registry)
		engine, err := workflow.New(workflow.Config{
			Store:     store,
			Retriever: ret,
			Searcher:  searcher,
			Generator: gen,
			Grader:    testutils.NewStubGrader(),
			Policy:    policy,
			Metrics:   metrics,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		s, err := NewServer(Config{
			ListenAddr: ":0",
			Engine:     engine,
			Store:      store,
			Ingester:   ing,
			Gatherer:   registry,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		store = inmemory.NewStore()
		searcher = &testutils.StubSearcher{Result: "from the web"}
		gen = testutils.NewStubGenerator("the answer")
		embedder = testutils.NewMockEmbedder()
		vectors = vectorinmemory.NewDriver()
		registry = prometheus.NewRegistry()

		var err error
		ing, err = ingest.New(ingest.Config{
			UploadDir: GinkgoT().TempDir(),
			Embedder:  embedder,
			Driver:    vectors,
		})
		Expect(err).NotTo(HaveOccurred())

		ret = testutils.NewStubRetriever().WithText(filepath.Join(ing.Dir(), "bio.txt"), "chlorophyll")
		server = newServer(workflow.PolicyFanout)
	})

	Describe("NewServer", func() {
		It("requires an engine, a store and a logger", func() {
			_, err := NewServer(Config{Store: store}, logger.Nop())
			Expect(err).To(HaveOccurred())

			_, err = NewServer(Config{Engine: &workflow.Engine{}, Store: store}, nil)
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[string](resp)).To(Equal("pong"))
		})
	})

	Describe("POST /v1/conversations/:thread/chat", func() {
		It("answers a scoped query", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{
				Query: "what makes leaves green?",
				File:  "bio.txt",
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[conversations.ChatOutput](resp)
			Expect(out.Response).To(Equal("the answer"))
			Expect(out.ThreadID).To(Equal("t1"))
			Expect(out.Path).To(Equal([]string{"retrieve_document", "generate"}))
			Expect(out.Usage).NotTo(BeNil())
			Expect(out.Usage.TotalTokens).To(Equal(15))
		})

		It("treats None as no scope", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{
				Query:           "latest news?",
				File:            "None",
				EnableWebSearch: true,
			}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[conversations.ChatOutput](resp).Path).To(Equal([]string{"search_web", "generate"}))
			Expect(ret.Calls()).To(Equal(0))
		})

		It("rejects an empty query with 400", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{Query: "  "}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a malformed body with 400", func() {
			req, _ := http.NewRequest(http.MethodPost, "/v1/conversations/t1/chat", strings.NewReader("{"))
			req.Header.Set("Content-Type", "application/json")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects unscoped turns under the grading policy with 400", func() {
			registry = prometheus.NewRegistry()
			server = newServer(workflow.PolicyGrading)
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{Query: "q"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[llm.ErrorResponse](resp).Error).To(ContainSubstring("document scope is required"))
		})

		It("reports capability failures with 502 and the failing node", func() {
			gen.Err = errors.New("model offline")
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{Query: "q"}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))

			body := decode[llm.ErrorResponse](resp)
			Expect(body.Node).To(Equal("generate"))
			Expect(body.Source).To(Equal(workflow.SourceGenerator))
		})
	})

	Describe("conversation reads", func() {
		BeforeEach(func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{Query: "hi"}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("lists threads", func() {
			req, _ := http.NewRequest(http.MethodGet, "/v1/conversations", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(decode[map[string][]string](resp)["threads"]).To(Equal([]string{"t1"}))
		})

		It("returns a thread's messages", func() {
			req, _ := http.NewRequest(http.MethodGet, "/v1/conversations/t1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			thread := decode[conversations.Thread](resp)
			Expect(thread.Next).To(Equal(checkpoint.End))
			Expect(thread.Messages).To(Equal([]conversations.Message{
				{Role: llm.RoleUser, Text: "hi"},
				{Role: llm.RoleAssistant, Text: "the answer"},
			}))
		})

		It("returns the checkpoint lineage", func() {
			req, _ := http.NewRequest(http.MethodGet, "/v1/conversations/t1/checkpoints", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			body := decode[struct {
				ThreadID    string                            `json:"thread_id"`
				Checkpoints []conversations.CheckpointSummary `json:"checkpoints"`
			}](resp)
			Expect(body.ThreadID).To(Equal("t1"))
			Expect(body.Checkpoints).To(HaveLen(1))
			Expect(body.Checkpoints[0].Next).To(Equal(checkpoint.End))
		})

		It("returns 404 for unknown threads", func() {
			for _, url := range []string{"/v1/conversations/nope", "/v1/conversations/nope/checkpoints"} {
				req, _ := http.NewRequest(http.MethodGet, url, nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound), url)
			}

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/nope/resume", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("resumes a completed thread by returning its last answer", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/resume", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			out := decode[conversations.ChatOutput](resp)
			Expect(out.Response).To(Equal("the answer"))
			Expect(out.Path).To(BeEmpty())
		})
	})

	Describe("files", func() {
		It("uploads, lists and deletes documents", func() {
			resp, err := server.app.Test(uploadRequest("notes.md", "first\n\nsecond"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			up := decode[UploadResponse](resp)
			Expect(up.Message).To(Equal("File uploaded successfully"))
			Expect(up.FileName).To(Equal("notes.md"))
			Expect(up.DocumentIDs).To(HaveLen(1))

			sources, err := vectors.Sources(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(Equal([]string{filepath.Join(ing.Dir(), "notes.md")}))

			req, _ := http.NewRequest(http.MethodGet, "/v1/files", nil)
			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(decode[map[string][]string](resp)["files"]).To(Equal([]string{"notes.md"}))

			req, _ = http.NewRequest(http.MethodDelete, "/v1/files/notes.md", nil)
			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[DeleteResponse](resp).Message).To(Equal("File deleted successfully"))

			sources, err = vectors.Sources(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(BeEmpty())
		})

		It("returns 404 when deleting a missing file", func() {
			req, _ := http.NewRequest(http.MethodDelete, "/v1/files/missing.txt", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			Expect(decode[llm.ErrorResponse](resp).Error).To(Equal("File not found"))
		})

		It("rejects unsupported uploads with 400", func() {
			resp, err := server.app.Test(uploadRequest("tool.exe", "MZ"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			files, err := os.ReadDir(ing.Dir())
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(BeEmpty())
		})

		It("reports embedding failures with 502", func() {
			embedder.FailOn = "boom"
			resp, err := server.app.Test(uploadRequest("bad.txt", "boom"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})

		It("requires the file field", func() {
			req, _ := http.NewRequest(http.MethodPost, "/v1/files", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /metrics", func() {
		It("exposes workflow metrics", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/conversations/t1/chat", ChatRequest{Query: "hi"}), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(fmt.Sprintf("ragchat_workflow_turns_total{outcome=%q,policy=%q} 1", workflow.OutcomeGenerated, workflow.PolicyFanout)))
		})
	})
})

var _ = Describe("errorStatus", func() {
	DescribeTable("maps errors to HTTP statuses",
		func(err error, want int) {
			status, _ := errorStatus(err)
			Expect(status).To(Equal(want))
		},
		Entry("empty query", workflow.ErrEmptyQuery, fiber.StatusBadRequest),
		Entry("scope", &workflow.ScopeError{ThreadID: "t"}, fiber.StatusBadRequest),
		Entry("capability", &workflow.CapabilityError{Source: workflow.SourceWebSearcher, Node: workflow.KindSearchWeb, Err: errors.New("x")}, fiber.StatusBadGateway),
		Entry("checkpoint", &workflow.CheckpointError{Op: "append", ThreadID: "t", Err: errors.New("x")}, fiber.StatusInternalServerError),
		Entry("not found", checkpoint.NotFoundError{ThreadID: "t"}, fiber.StatusNotFound),
		Entry("deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), fiber.StatusGatewayTimeout),
		Entry("canceled capability", &workflow.CapabilityError{Source: workflow.SourceGenerator, Node: workflow.KindGenerate, Err: context.Canceled}, fiber.StatusGatewayTimeout),
		Entry("unknown", errors.New("boom"), fiber.StatusInternalServerError),
	)
})
