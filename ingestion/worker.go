package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/loopwork/cardpile/core"
	"github.com/loopwork/cardpile/queue"
)

// Worker consumes card processing jobs from the queue and runs each one
// through the pipeline on a bounded goroutine pool.
type Worker struct {
	queue    *queue.Queue
	pipeline *Pipeline
	pool     *ants.Pool

	pollInterval time.Duration
	locks        *cardLocks
	logger       *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker) error

// WithWorkers sets the processing pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) WorkerOption {
	return func(w *Worker) error {
		if size < 1 {
			size = 1
		}
		if w.pool != nil {
			w.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		w.pool = pool
		return nil
	}
}

// WithPollInterval sets the sleep between empty queue polls.
// Default is one second.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) error {
		if interval > 0 {
			w.pollInterval = interval
		}
		return nil
	}
}

// WithWorkerLogger sets a custom logger.
// Default is slog.Default().
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWorker creates a queue consumer for the given pipeline.
func NewWorker(q *queue.Queue, pipeline *Pipeline, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, errors.New("queue required")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		queue:        q,
		pipeline:     pipeline,
		pool:         pool,
		pollInterval: time.Second,
		locks:        newCardLocks(),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(w); optErr != nil {
			w.pool.Release()
			return nil, optErr
		}
	}

	return w, nil
}

// Run consumes jobs until the context is cancelled. Blocks.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "pool_size", w.pool.Cap())

	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.pollInterval):
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "err", err)
			continue
		}

		if err := w.pool.Submit(func() {
			w.handle(ctx, delivery)
		}); err != nil {
			w.logger.Error("pool submit failed", "err", err)
			if failErr := delivery.Fail(err.Error()); failErr != nil {
				w.logger.Error("failed to return job to queue", "err", failErr)
			}
		}
	}
}

// handle runs one delivery to a terminal state: acked on success or
// permanent failure, failed back to the queue on transient errors.
func (w *Worker) handle(ctx context.Context, delivery *queue.Delivery) {
	cardId := delivery.Job().CardId

	// Two deliveries for the same card must not interleave their writes.
	unlock := w.locks.lock(cardId)
	defer unlock()

	err := w.pipeline.Process(ctx, cardId)
	switch {
	case err == nil:
		if ackErr := delivery.Ack(); ackErr != nil {
			w.logger.Error("ack failed", "card_id", cardId, "err", ackErr)
		}

	case IsPermanent(err):
		// The failure is recorded on the card; redelivery cannot help.
		w.logger.Warn("permanent failure, dropping job", "card_id", cardId, "err", err)
		if ackErr := delivery.Ack(); ackErr != nil {
			w.logger.Error("ack failed", "card_id", cardId, "err", ackErr)
		}

	default:
		w.logger.Warn("transient failure, returning job", "card_id", cardId,
			"attempt", delivery.Attempts(), "err", err)
		if failErr := delivery.Fail(err.Error()); failErr != nil {
			w.logger.Error("failed to return job to queue", "card_id", cardId, "err", failErr)
		}
	}
}

// Release frees the worker pool. The worker must not be used afterwards.
func (w *Worker) Release() {
	w.pool.Release()
}

// cardLocks hands out one mutex per card ID, so concurrent deliveries of
// the same card serialize while distinct cards proceed in parallel.
type cardLocks struct {
	mu      sync.Mutex
	entries map[core.ID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCardLocks() *cardLocks {
	return &cardLocks{entries: make(map[core.ID]*lockEntry)}
}

// lock acquires the mutex for id and returns the matching unlock.
func (c *cardLocks) lock(id core.ID) func() {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		entry = &lockEntry{}
		c.entries[id] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.entries, id)
		}
		c.mu.Unlock()
	}
}
