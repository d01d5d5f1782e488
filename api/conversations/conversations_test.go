package conversations_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/logger"
	testutils "github.com/papercomputeco/ragchat/pkg/utils/test"
	vectorinmemory "github.com/papercomputeco/ragchat/pkg/vector/inmemory"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		store   *inmemory.Store
		ret     *testutils.StubRetriever
		gen     *testutils.StubGenerator
		ing     *ingest.Ingester
		service *conversations.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		gen = testutils.NewStubGenerator("an answer")

		var err error
		ing, err = ingest.New(ingest.Config{
			UploadDir: GinkgoT().TempDir(),
			Embedder:  testutils.NewMockEmbedder(),
			Driver:    vectorinmemory.NewDriver(),
		})
		Expect(err).NotTo(HaveOccurred())

		ret = testutils.NewStubRetriever().WithText(filepath.Join(ing.Dir(), "bio.pdf"), "plants")

		engine, err := workflow.New(workflow.Config{
			Store:     store,
			Retriever: ret,
			Searcher:  &testutils.StubSearcher{Result: "web"},
			Generator: gen,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		service, err = conversations.NewService(engine, store, ing)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires an engine and a store", func() {
		_, err := conversations.NewService(nil, store, nil)
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("resolving chat scopes",
		func(file string, want func() string) {
			scope, err := service.Scope(file)
			Expect(err).NotTo(HaveOccurred())
			Expect(scope).To(Equal(want()))
		},
		Entry("empty", "", func() string { return "" }),
		Entry("None", "None", func() string { return "" }),
		Entry("upload name", "bio.pdf", func() string { return filepath.Join(ing.Dir(), "bio.pdf") }),
	)

	It("rejects file values outside the upload dir", func() {
		_, err := service.Chat(ctx, conversations.ChatInput{Query: "q", File: "../etc/passwd"})
		Expect(err).To(MatchError(ingest.ErrInvalidName))
	})

	It("runs a scoped turn and exposes the thread", func() {
		out, err := service.Chat(ctx, conversations.ChatInput{ThreadID: "t1", Query: "what is it?", File: "bio.pdf"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.ThreadID).To(Equal("t1"))
		Expect(out.Response).To(Equal("an answer"))
		Expect(out.Path).To(Equal([]string{"retrieve_document", "generate"}))
		Expect(out.Usage).NotTo(BeNil())
		Expect(out.CheckpointID).NotTo(BeEmpty())

		thread, err := service.GetThread(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(thread.Next).To(Equal(checkpoint.End))
		Expect(thread.File).To(Equal(filepath.Join(ing.Dir(), "bio.pdf")))
		Expect(thread.Messages[0]).To(Equal(conversations.Message{Role: "user", Text: "what is it?"}))
		Expect(thread.Messages[len(thread.Messages)-1].Text).To(Equal("an answer"))

		lineage, err := service.Checkpoints(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(lineage).To(HaveLen(2))
		Expect(lineage[0].ParentID).To(BeNil())
		Expect(lineage[0].Next).To(Equal("generate"))
		Expect(*lineage[1].ParentID).To(Equal(lineage[0].ID))
		Expect(lineage[1].ID).To(Equal(out.CheckpointID))

		threads, err := service.ListThreads(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).To(Equal([]string{"t1"}))
	})

	It("generates a thread ID when none is given", func() {
		out, err := service.Chat(ctx, conversations.ChatInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.ThreadID).NotTo(BeEmpty())
		Expect(out.Path).To(Equal([]string{"generate"}))
	})

	It("reports unknown threads as not found", func() {
		_, err := service.GetThread(ctx, "missing")
		Expect(checkpoint.IsNotFound(err)).To(BeTrue())

		_, err = service.Checkpoints(ctx, "missing")
		Expect(checkpoint.IsNotFound(err)).To(BeTrue())

		_, err = service.Resume(ctx, "missing")
		Expect(checkpoint.IsNotFound(err)).To(BeTrue())
	})

	It("lists no threads as an empty slice", func() {
		threads, err := service.ListThreads(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).NotTo(BeNil())
		Expect(threads).To(BeEmpty())
	})
})
