package ingest_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/ingest"
)

var _ = Describe("Chunker", func() {
	It("returns no chunks for blank text", func() {
		c := ingest.NewChunker(100, 10)
		Expect(c.Split("  \n\n \n")).To(BeEmpty())
	})

	It("packs short paragraphs into one chunk", func() {
		c := ingest.NewChunker(100, 10)
		Expect(c.Split("alpha\n\nbeta\r\n\r\ngamma")).To(Equal([]string{"alpha\n\nbeta\n\ngamma"}))
	})

	It("starts a new chunk when the next paragraph does not fit", func() {
		c := ingest.NewChunker(12, 2)
		Expect(c.Split("aaaaa\n\nbbbbb\n\nccccc")).To(Equal([]string{"aaaaa\n\nbbbbb", "ccccc"}))
	})

	It("windows long paragraphs on word boundaries with overlap", func() {
		words := strings.Repeat("word ", 60)
		c := ingest.NewChunker(50, 10)

		chunks := c.Split(words)
		Expect(len(chunks)).To(BeNumerically(">", 1))
		for _, ch := range chunks {
			Expect(len([]rune(ch))).To(BeNumerically("<=", 50))
			Expect(ch).NotTo(HavePrefix("ord"))
			for _, w := range strings.Fields(ch) {
				Expect(w).To(Equal("word"))
			}
		}
	})

	It("falls back to hard cuts when there is no whitespace", func() {
		c := ingest.NewChunker(10, 2)
		chunks := c.Split(strings.Repeat("x", 25))
		Expect(chunks[0]).To(Equal(strings.Repeat("x", 10)))
		Expect(strings.Join(chunks, "")).To(ContainSubstring(strings.Repeat("x", 10)))
		Expect(len(chunks)).To(Equal(3))
	})

	It("sanitises invalid settings", func() {
		c := ingest.NewChunker(0, -1)
		Expect(c.MaxChars).To(Equal(ingest.DefaultMaxChunkChars))
		Expect(c.Overlap).To(Equal(ingest.DefaultChunkOverlap))

		c = ingest.NewChunker(10, 20)
		Expect(c.Overlap).To(Equal(5))
	})
})
