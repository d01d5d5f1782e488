// Package testsuite holds the behaviour shared by every vector.Driver test
// suite.
package testsuite

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/vector"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec with 4 dimensions and must return an empty driver.
func DescribeDriver(newDriver func() vector.Driver) {
	var (
		driver vector.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()

		Expect(driver.Add(ctx, []vector.Document{
			{ID: "bio#0", Source: "bio.pdf", Content: "Photosynthesis happens in chloroplasts.", Embedding: []float32{1, 0, 0, 0}},
			{ID: "bio#1", Source: "bio.pdf", Content: "Mitochondria produce ATP.", Embedding: []float32{0, 1, 0, 0}},
			{ID: "geo#0", Source: "geo.txt", Content: "Rivers carve valleys.", Embedding: []float32{0.9, 0.1, 0, 0}},
		})).To(Succeed())
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	It("ranks by similarity within a source", func() {
		results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 2, "bio.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].ID).To(Equal("bio#0"))
		Expect(results[0].Content).To(Equal("Photosynthesis happens in chloroplasts."))
		Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		for _, r := range results {
			Expect(r.Source).To(Equal("bio.pdf"))
		}
	})

	It("searches every source when unscoped", func() {
		results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 2, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[1].ID).To(Equal("geo#0"))
	})

	It("returns nothing for an unknown source", func() {
		results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 2, "missing.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("replaces a document with the same ID", func() {
		Expect(driver.Add(ctx, []vector.Document{
			{ID: "bio#0", Source: "bio.pdf", Content: "Updated.", Embedding: []float32{0, 0, 1, 0}},
		})).To(Succeed())

		results, err := driver.Query(ctx, []float32{0, 0, 1, 0}, 5, "bio.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Content).To(Equal("Updated."))
	})

	It("deletes every chunk of a source", func() {
		n, err := driver.DeleteSource(ctx, "bio.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		results, err := driver.Query(ctx, []float32{1, 0, 0, 0}, 5, "bio.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())

		sources, err := driver.Sources(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(Equal([]string{"geo.txt"}))
	})

	It("lists distinct sources", func() {
		sources, err := driver.Sources(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(Equal([]string{"bio.pdf", "geo.txt"}))
	})
}
