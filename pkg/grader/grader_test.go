package grader_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/grader"
	"github.com/papercomputeco/ragchat/pkg/logger"
	testutils "github.com/papercomputeco/ragchat/pkg/utils/test"
)

var _ = Describe("ParseVerdict", func() {
	DescribeTable("accepted replies",
		func(reply string, want bool) {
			got, err := grader.ParseVerdict(reply)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("bare yes", "yes", true),
		Entry("bare no", "no", false),
		Entry("capitalized with punctuation", "  Yes.\n", true),
		Entry("bold", "**NO**", false),
		Entry("quoted", `"yes"`, true),
		Entry("json yes", `{"binary_score": "yes"}`, true),
		Entry("json no", `{"binary_score":"No"}`, false),
	)

	DescribeTable("ambiguous replies",
		func(reply string) {
			_, err := grader.ParseVerdict(reply)
			Expect(errors.Is(err, grader.ErrGradingAmbiguous)).To(BeTrue())
		},
		Entry("empty", ""),
		Entry("sentence", "Yes, the document is relevant"),
		Entry("maybe", "maybe"),
		Entry("bad json", `{"binary_score": `),
		Entry("json without score", `{"score": "yes"}`),
	)
})

var _ = Describe("LLMGrader", func() {
	var (
		gen *testutils.StubGenerator
		g   *grader.LLMGrader
	)

	BeforeEach(func() {
		gen = testutils.NewStubGenerator("yes")
		g = grader.NewLLMGrader(gen, logger.Nop())
	})

	It("grades relevant context", func() {
		ok, err := g.Grade(context.Background(), "what is photosynthesis?", "Photosynthesis converts light.")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		history := gen.LastHistory()
		Expect(history).To(HaveLen(1))
		Expect(history[0].GetText()).To(ContainSubstring("Photosynthesis converts light."))
		Expect(history[0].GetText()).To(ContainSubstring("Here is the user query: what is photosynthesis?"))
	})

	It("grades an empty context false without calling the model", func() {
		ok, err := g.Grade(context.Background(), "q", "  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(gen.Calls()).To(Equal(0))
	})

	It("fails closed on ambiguous replies", func() {
		gen.Reply = "I am not sure"
		ok, err := g.Grade(context.Background(), "q", "ctx")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("returns transport errors", func() {
		gen.Err = errors.New("connection refused")
		_, err := g.Grade(context.Background(), "q", "ctx")
		Expect(err).To(MatchError("connection refused"))
	})
})
