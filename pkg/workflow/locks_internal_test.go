package workflow

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("threadLocks", func() {
	It("blocks a second holder until release", func() {
		l := newThreadLocks()
		unlock, err := l.lock(context.Background(), "t1")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			u, err := l.lock(context.Background(), "t1")
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
			u()
		}()

		Consistently(acquired, 50*time.Millisecond).ShouldNot(BeClosed())
		unlock()
		Eventually(acquired).Should(BeClosed())
		Eventually(l.size).Should(Equal(0))
	})

	It("does not block distinct threads", func() {
		l := newThreadLocks()
		u1, err := l.lock(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		u2, err := l.lock(context.Background(), "b")
		Expect(err).NotTo(HaveOccurred())
		u1()
		u2()
		Expect(l.size()).To(Equal(0))
	})

	It("gives up when the context is done", func() {
		l := newThreadLocks()
		unlock, err := l.lock(context.Background(), "t1")
		Expect(err).NotTo(HaveOccurred())
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.lock(ctx, "t1")
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(l.size()).To(Equal(1))
	})

	It("tolerates double unlock", func() {
		l := newThreadLocks()
		unlock, err := l.lock(context.Background(), "t1")
		Expect(err).NotTo(HaveOccurred())
		unlock()
		unlock()
		Expect(l.size()).To(Equal(0))
	})
})
