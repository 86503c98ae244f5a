package posts

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Writer sizing defaults, used when the corresponding option is zero.
const (
	DefaultWriteBuffer   = 10000
	DefaultBatchSize     = 100
	DefaultFlushInterval = 5 * time.Second
)

// BatchWriter stages accepted posts in a bounded in-memory queue and lands
// them through Repository.AddPostsBatch. Two triggers flush: the append
// path when the queue reaches the batch size, and a ticker every flush
// interval. Delivery is at most once: a batch the store rejects is logged
// and dropped, and posts arriving while the queue is full are dropped.
type BatchWriter struct {
	repo      Repository
	capacity  int
	batchSize int
	interval  time.Duration

	mu    sync.Mutex
	queue []PostFields

	batchesFlushed atomic.Int64
	postsFlushed   atomic.Int64
	postsDropped   atomic.Int64
}

// WriterStats is a point-in-time snapshot of the writer counters.
type WriterStats struct {
	QueueDepth     int   `json:"queue_depth"`
	BatchesFlushed int64 `json:"batches_flushed"`
	PostsFlushed   int64 `json:"posts_flushed"`
	PostsDropped   int64 `json:"posts_dropped"`
}

// NewBatchWriter builds a writer over repo. Zero options take the package
// defaults.
func NewBatchWriter(repo Repository, capacity, batchSize int, interval time.Duration) *BatchWriter {
	if capacity <= 0 {
		capacity = DefaultWriteBuffer
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &BatchWriter{
		repo:      repo,
		capacity:  capacity,
		batchSize: batchSize,
		interval:  interval,
		queue:     make([]PostFields, 0, batchSize),
	}
}

// Add stages one post, reporting false when the queue is full and the post
// was dropped. Reaching the batch size flushes inline.
func (w *BatchWriter) Add(ctx context.Context, fields PostFields) bool {
	w.mu.Lock()
	if len(w.queue) >= w.capacity {
		w.mu.Unlock()
		w.postsDropped.Add(1)
		return false
	}
	w.queue = append(w.queue, fields)
	full := len(w.queue) >= w.batchSize
	w.mu.Unlock()

	if full {
		w.Flush(ctx)
	}
	return true
}

// Flush drains the queue under the lock and writes the drained slice with
// the lock released, so appends continue while the store works.
func (w *BatchWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.queue
	w.queue = make([]PostFields, 0, w.batchSize)
	w.mu.Unlock()

	inserted, err := w.repo.AddPostsBatch(ctx, batch)
	if err != nil {
		w.postsDropped.Add(int64(len(batch)))
		slog.Error("batch write failed, dropping batch", "posts", len(batch), "error", err)
		return
	}
	w.batchesFlushed.Add(1)
	w.postsFlushed.Add(int64(inserted))
	slog.Debug("batch flushed", "staged", len(batch), "inserted", inserted)
}

// Run flushes on the configured interval until ctx is canceled, then runs
// one final flush so shutdown does not strand staged posts. The final flush
// gets a fresh timeout context because the parent is already canceled.
func (w *BatchWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.Flush(flushCtx)
			cancel()
			return
		}
	}
}

// QueueDepth returns the number of currently staged posts.
func (w *BatchWriter) QueueDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Stats snapshots the writer counters.
func (w *BatchWriter) Stats() WriterStats {
	return WriterStats{
		QueueDepth:     w.QueueDepth(),
		BatchesFlushed: w.batchesFlushed.Load(),
		PostsFlushed:   w.postsFlushed.Load(),
		PostsDropped:   w.postsDropped.Load(),
	}
}
