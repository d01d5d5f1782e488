package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ragchat/pkg/ingest"
	testutils "github.com/papercomputeco/ragchat/pkg/utils/test"
	"github.com/papercomputeco/ragchat/pkg/vector/inmemory"
)

type jobLog struct {
	mu   sync.Mutex
	jobs []ingest.Job
	errs []error
}

func (l *jobLog) record(j ingest.Job, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, j)
	l.errs = append(l.errs, err)
}

func (l *jobLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}

var _ = Describe("Pool", func() {
	var (
		ctx    context.Context
		dir    string
		driver *inmemory.Driver
		ing    *ingest.Ingester
		log    *jobLog
		pool   *ingest.Pool
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		driver = inmemory.NewDriver()
		log = &jobLog{}

		var err error
		ing, err = ingest.New(ingest.Config{
			UploadDir: dir,
			Embedder:  testutils.NewMockEmbedder(),
			Driver:    driver,
		})
		Expect(err).NotTo(HaveOccurred())

		pool, err = ingest.NewPool(&ingest.PoolConfig{
			Ingester:   ing,
			NumWorkers: 2,
			OnDone:     log.record,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
	})

	It("requires an ingester", func() {
		_, err := ingest.NewPool(&ingest.PoolConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("ingests and removes files asynchronously", func() {
		path := filepath.Join(dir, "bio.txt")
		Expect(os.WriteFile(path, []byte("biography"), 0o600)).To(Succeed())

		Expect(pool.Enqueue(ingest.Job{Op: ingest.OpIngest, Path: path})).To(BeTrue())
		Eventually(func() ([]string, error) { return driver.Sources(ctx) }).Should(Equal([]string{path}))

		Expect(pool.Enqueue(ingest.Job{Op: ingest.OpRemove, Path: path})).To(BeTrue())
		Eventually(func() ([]string, error) { return driver.Sources(ctx) }).Should(BeEmpty())
	})

	It("reports job failures through OnDone", func() {
		Expect(pool.Enqueue(ingest.Job{Op: ingest.OpIngest, Path: filepath.Join(dir, "missing.txt")})).To(BeTrue())
		Expect(pool.Enqueue(ingest.Job{Op: "bogus", Path: "x"})).To(BeTrue())

		Eventually(log.count).Should(Equal(2))
		log.mu.Lock()
		defer log.mu.Unlock()
		for _, err := range log.errs {
			Expect(err).To(HaveOccurred())
		}
	})

	It("drains queued jobs on Close and refuses new ones", func() {
		for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(name), 0o600)).To(Succeed())
			Expect(pool.Enqueue(ingest.Job{Op: ingest.OpIngest, Path: path})).To(BeTrue())
		}

		pool.Close()
		Expect(log.count()).To(Equal(3))
		Expect(pool.Enqueue(ingest.Job{Op: ingest.OpIngest, Path: "x"})).To(BeFalse())

		sources, err := driver.Sources(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(3))
	})
})

var _ = Describe("Watcher", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		dir    string
		driver *inmemory.Driver
		pool   *ingest.Pool
		done   chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		dir = GinkgoT().TempDir()
		driver = inmemory.NewDriver()

		ing, err := ingest.New(ingest.Config{
			UploadDir: dir,
			Embedder:  testutils.NewMockEmbedder(),
			Driver:    driver,
		})
		Expect(err).NotTo(HaveOccurred())

		pool, err = ingest.NewPool(&ingest.PoolConfig{Ingester: ing})
		Expect(err).NotTo(HaveOccurred())

		w := ingest.NewWatcher(ing.Dir(), pool, 20*time.Millisecond, nil)
		done = make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		// let the watcher register before files appear
		time.Sleep(50 * time.Millisecond)
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		pool.Close()
	})

	It("indexes new files and drops chunks of removed files", func() {
		path := filepath.Join(dir, "notes.md")
		Expect(os.WriteFile(path, []byte("watched notes"), 0o600)).To(Succeed())

		Eventually(func() ([]string, error) { return driver.Sources(ctx) }, "2s").
			Should(ConsistOf(HaveSuffix("notes.md")))

		Expect(os.Remove(path)).To(Succeed())
		Eventually(func() ([]string, error) { return driver.Sources(ctx) }, "2s").Should(BeEmpty())
	})

	It("ignores unsupported and hidden files", func() {
		Expect(os.WriteFile(filepath.Join(dir, "data.csv"), []byte("a,b"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, ".draft.txt"), []byte("x"), 0o600)).To(Succeed())

		Consistently(func() ([]string, error) { return driver.Sources(ctx) }, "200ms").Should(BeEmpty())
	})
})
