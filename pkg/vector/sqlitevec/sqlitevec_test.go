package sqlitevec_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/logger"
	"github.com/papercomputeco/ragchat/pkg/vector"
	"github.com/papercomputeco/ragchat/pkg/vector/sqlitevec"
	"github.com/papercomputeco/ragchat/pkg/vector/testsuite"
)

var _ = Describe("SQLiteVecDriver", func() {
	Describe("NewSQLiteVecDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{DBPath: ""}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*sqlitevec.SQLiteVecDriver)(nil)
		})
	})

	Context("driver behaviour", func() {
		testsuite.DescribeDriver(func() vector.Driver {
			d, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	It("rejects embeddings of the wrong size", func() {
		d, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		err = d.Add(context.Background(), []vector.Document{{ID: "x", Source: "s", Embedding: []float32{1, 2}}})
		Expect(errors.Is(err, vector.ErrDimensions)).To(BeTrue())
	})
})
