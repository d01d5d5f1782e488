package postgres_test

import (
	"context"
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/postgres"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/storetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("RAGCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("RAGCHAT_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	storetest.DescribeStore(func() checkpoint.Store {
		ctx := context.Background()
		s, err := postgres.NewStore(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all checkpoints before each test for isolation.
		Expect(s.Truncate(ctx)).To(Succeed())
		return s
	})

	It("returns an error for an unreachable database", func() {
		connStr()
		_, err := postgres.NewStore(context.Background(), "host=invalid port=9999 user=bad dbname=bad sslmode=disable connect_timeout=1")
		Expect(err).To(HaveOccurred())
		fmt.Fprintf(GinkgoWriter, "expected error: %v\n", err)
	})
})
