package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 5 * time.Minute
)

// Op is the kind of work a Job asks for.
type Op string

const (
	// OpIngest (re)indexes a file when it changed since its last ingestion.
	OpIngest Op = "ingest"

	// OpRemove drops the chunks of a file that no longer exists.
	OpRemove Op = "remove"
)

// Job is a unit of work for the ingestion pool.
type Job struct {
	Op   Op
	Path string
}

// PoolConfig is the configuration for the ingestion worker pool.
type PoolConfig struct {
	Ingester *Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single job (defaults to 5 minutes).
	JobTimeout time.Duration

	// OnDone is called after every job with its outcome.
	OnDone func(Job, error)

	Logger *slog.Logger
}

// Pool runs ingestion jobs off the caller's path so that slow embedding
// backends never block file watching or HTTP handlers.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job. It returns false when the queue is full or the pool
// is closed, in which case the job is dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("job not queued, pool closed", "op", job.Op, "path", job.Path)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "op", job.Op, "path", job.Path)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "op", job.Op, "path", job.Path)
		return false
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("ingest worker started", "worker_id", id)

	for job := range p.queue {
		err := p.process(job)
		if p.config.OnDone != nil {
			p.config.OnDone(job, err)
		}
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) process(job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	var err error
	switch job.Op {
	case OpIngest:
		var ran bool
		ran, err = p.config.Ingester.IngestIfChanged(ctx, job.Path)
		if err == nil && !ran {
			p.logger.Debug("document unchanged, skipped", "path", job.Path)
		}
	case OpRemove:
		_, err = p.config.Ingester.RemoveChunks(ctx, job.Path)
	default:
		err = fmt.Errorf("unknown ingest op %q", job.Op)
	}

	if err != nil {
		p.logger.Error("ingest job failed", "op", job.Op, "path", job.Path, "error", err)
	}
	return err
}
