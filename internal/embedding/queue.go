package embedding

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/metrics"
)

// ErrQueueFull is returned by Queue.Refresh when no more paths can be
// buffered.
var ErrQueueFull = errors.New("embedding: refresh queue full")

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent refreshes.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets the number of pending paths the queue can hold.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.size = n
		}
	}
}

// WithOnRefreshed registers a callback for every successful refresh.
func WithOnRefreshed(fn func(path string, out Outcome)) QueueOption {
	return func(q *Queue) { q.onRefreshed = fn }
}

// WithOnError registers a callback for every failed refresh.
func WithOnError(fn func(path string, err error)) QueueOption {
	return func(q *Queue) { q.onError = fn }
}

// Queue refreshes embeddings in the background. Refresh only enqueues;
// repeated requests for a path still waiting in the queue collapse into one.
// A request for a path whose refresh is in flight is replayed once that
// refresh finishes.
type Queue struct {
	indexer *Indexer
	logger  *slog.Logger
	metrics *metrics.Metrics

	workers     int
	size        int
	onRefreshed func(string, Outcome)
	onError     func(string, error)

	jobs    chan string
	mu      sync.Mutex
	pending map[string]struct{}
	running map[string]struct{}
	dirty   map[string]struct{}
}

// NewQueue creates a Queue backed by ix. Call Run to start processing.
func NewQueue(ix *Indexer, logger *slog.Logger, m *metrics.Metrics, opts ...QueueOption) *Queue {
	q := &Queue{
		indexer: ix,
		logger:  logger,
		metrics: m,
		workers: 2,
		size:    256,
		pending: make(map[string]struct{}),
		running: make(map[string]struct{}),
		dirty:   make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.jobs = make(chan string, q.size)
	return q
}

// Refresh schedules path for a refresh and returns immediately.
func (q *Queue) Refresh(_ context.Context, path string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[path]; ok {
		return nil
	}
	if _, ok := q.running[path]; ok {
		q.dirty[path] = struct{}{}
		return nil
	}
	return q.enqueueLocked(path)
}

func (q *Queue) enqueueLocked(path string) error {
	select {
	case q.jobs <- path:
		q.pending[path] = struct{}{}
		q.metrics.SetQueueDepth(len(q.pending))
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports the number of queued paths.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes queued paths until ctx is cancelled. In-flight refreshes see
// the cancellation and leave the previous stored pair intact.
func (q *Queue) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.workers)
	q.logger.Info("embedding: refresh queue started", slog.Int("workers", q.workers))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("embedding: refresh queue stopping")
			return g.Wait()
		case path := <-q.jobs:
			q.dequeue(path)
			g.Go(func() error {
				q.process(gctx, path)
				return nil
			})
		}
	}
}

func (q *Queue) dequeue(path string) {
	q.mu.Lock()
	delete(q.pending, path)
	q.running[path] = struct{}{}
	q.metrics.SetQueueDepth(len(q.pending))
	q.mu.Unlock()
}

// finish releases path and requeues it when it was requested mid-refresh.
func (q *Queue) finish(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, path)
	if _, ok := q.dirty[path]; !ok {
		return
	}
	delete(q.dirty, path)
	if err := q.enqueueLocked(path); err != nil {
		q.logger.Warn("embedding: requeue failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (q *Queue) process(ctx context.Context, path string) {
	defer q.finish(path)
	out, err := q.indexer.Index(ctx, path)
	if err != nil {
		q.logger.Warn("embedding: refresh failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if q.onError != nil {
			q.onError(path, err)
		}
		return
	}
	if q.onRefreshed != nil {
		q.onRefreshed(path, out)
	}
}
