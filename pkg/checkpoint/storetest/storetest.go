// Package storetest holds the behaviour every checkpoint.Store driver must
// satisfy, shared across the driver test suites.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

// DescribeStore registers the shared store specs. newStore is called before
// each spec and must return an empty store.
func DescribeStore(newStore func() checkpoint.Store) {
	var (
		store checkpoint.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	sampleState := func(query string) conversation.State {
		s := conversation.NewTurn(query, "uploads/bio.pdf", true)
		s.RAGContext = "Chlorophyll absorbs light."
		s.WebContext = "Photosynthesis converts light energy."
		return s
	}

	Describe("Load", func() {
		It("returns NotFoundError for an unknown thread", func() {
			_, err := store.Load(ctx, "missing")
			Expect(checkpoint.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Append", func() {
		It("round-trips every state field", func() {
			state := sampleState("What is photosynthesis?")

			written, err := store.Append(ctx, "t1", state, "generate")
			Expect(err).NotTo(HaveOccurred())

			loaded, err := store.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ID).To(Equal(written.ID))
			Expect(loaded.Next).To(Equal("generate"))
			Expect(loaded.State.Equal(&state)).To(BeTrue())
		})

		It("links checkpoints into a lineage", func() {
			first, err := store.Append(ctx, "t1", sampleState("q1"), "retrieve_document")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Seq).To(Equal(1))
			Expect(first.ParentID).To(BeNil())

			second, err := store.Append(ctx, "t1", sampleState("q1"), checkpoint.End)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Seq).To(Equal(2))
			Expect(second.ParentID).NotTo(BeNil())
			Expect(*second.ParentID).To(Equal(first.ID))
			Expect(second.ID).NotTo(Equal(first.ID))
			Expect(second.Completed()).To(BeTrue())
		})

		It("does not share state with the caller", func() {
			state := sampleState("q")
			_, err := store.Append(ctx, "t1", state, checkpoint.End)
			Expect(err).NotTo(HaveOccurred())

			state.Messages[0].Content[0].Text = "mutated"

			loaded, err := store.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.State.Query()).To(Equal("q"))
		})

		It("never hands out one sequence number twice under concurrent appends", func() {
			const writers = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seqs []int
			)

			for i := range writers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					cp, err := store.Append(ctx, "shared", sampleState(fmt.Sprintf("q%d", i)), checkpoint.End)
					if err != nil {
						Expect(errors.Is(err, checkpoint.ErrConflict)).To(BeTrue(), err.Error())
						return
					}

					mu.Lock()
					seqs = append(seqs, cp.Seq)
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(seqs).NotTo(BeEmpty())
			unique := map[int]bool{}
			for _, s := range seqs {
				Expect(unique[s]).To(BeFalse())
				unique[s] = true
			}

			history, err := store.History(ctx, "shared")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(len(seqs)))
		})
	})

	Describe("History", func() {
		It("returns the lineage oldest first", func() {
			for _, next := range []string{"retrieve_document", "generate", checkpoint.End} {
				_, err := store.Append(ctx, "t1", sampleState("q"), next)
				Expect(err).NotTo(HaveOccurred())
			}

			history, err := store.History(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			for i, cp := range history {
				Expect(cp.Seq).To(Equal(i + 1))
				if i > 0 {
					Expect(*cp.ParentID).To(Equal(history[i-1].ID))
				}
			}
			Expect(history[2].Next).To(Equal(checkpoint.End))
		})

		It("returns an empty lineage for an unknown thread", func() {
			history, err := store.History(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())
		})
	})

	Describe("ListThreads", func() {
		It("lists each thread once in order of first checkpoint", func() {
			for _, tid := range []string{"alpha", "beta", "alpha", "gamma"} {
				_, err := store.Append(ctx, tid, sampleState("q"), checkpoint.End)
				Expect(err).NotTo(HaveOccurred())
			}

			threads, err := store.ListThreads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(Equal([]string{"alpha", "beta", "gamma"}))
		})

		It("is idempotent without intervening writes", func() {
			_, err := store.Append(ctx, "t1", sampleState("q"), checkpoint.End)
			Expect(err).NotTo(HaveOccurred())

			first, err := store.ListThreads(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := store.ListThreads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("returns an empty list for an empty store", func() {
			threads, err := store.ListThreads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(BeEmpty())
		})

		It("accepts messages with assistant replies", func() {
			s := sampleState("q")
			s.Append(llm.NewTextMessage(llm.RoleAssistant, "a"))
			_, err := store.Append(ctx, "t1", s, checkpoint.End)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := store.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			last, _ := loaded.State.LastMessage()
			Expect(last.Role).To(Equal(llm.RoleAssistant))
		})
	})
}
