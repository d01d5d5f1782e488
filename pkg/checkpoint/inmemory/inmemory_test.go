package inmemory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/inmemory"
	"github.com/papercomputeco/ragchat/pkg/checkpoint/storetest"
)

var _ = Describe("Store", func() {
	storetest.DescribeStore(func() checkpoint.Store {
		return inmemory.NewStore()
	})
})
