package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loopwork/cardpile/core"
	storagebadger "github.com/loopwork/cardpile/storage/badger"
)

func newTestQueue(t *testing.T, cfg Config) (*Queue, *storagebadger.Backend) {
	t.Helper()
	backend, err := storagebadger.OpenBackend("", true)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	q, err := New(backend, cfg)
	if err != nil {
		backend.Close()
		t.Fatalf("Failed to create queue: %v", err)
	}
	return q, backend
}

func TestEnqueueDequeueAck(t *testing.T) {
	q, backend := newTestQueue(t, Config{})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "card-1"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if delivery.Job().CardId != "card-1" {
		t.Fatalf("Expected card-1, got %s", delivery.Job().CardId)
	}
	if delivery.Attempts() != 1 {
		t.Fatalf("Expected attempt 1, got %d", delivery.Attempts())
	}

	if err := delivery.Ack(); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty after ack, got %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Ready != 0 || stats.Scheduled != 0 || stats.Dead != 0 {
		t.Fatalf("Expected empty queue, got %+v", stats)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, backend := newTestQueue(t, Config{})
	defer backend.Close()

	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty, got %v", err)
	}
}

func TestEnqueueRequiresCardId(t *testing.T) {
	q, backend := newTestQueue(t, Config{})
	defer backend.Close()

	if err := q.Enqueue(context.Background(), core.Job{}); !errors.Is(err, core.ErrMissingCardId) {
		t.Fatalf("Expected ErrMissingCardId, got %v", err)
	}
}

func TestDequeueOldestFirst(t *testing.T) {
	q, backend := newTestQueue(t, Config{})
	defer backend.Close()

	ctx := context.Background()

	for _, id := range []core.ID{"first", "second", "third"} {
		if err := q.Enqueue(ctx, core.Job{CardId: id}); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
		time.Sleep(2 * time.Millisecond) // distinct visibility timestamps
	}

	for _, want := range []core.ID{"first", "second", "third"} {
		delivery, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if delivery.Job().CardId != want {
			t.Fatalf("Expected %s, got %s", want, delivery.Job().CardId)
		}
		if err := delivery.Ack(); err != nil {
			t.Fatalf("Failed to ack: %v", err)
		}
	}
}

func TestFailReschedules(t *testing.T) {
	q, backend := newTestQueue(t, Config{RetryDelay: 10 * time.Millisecond})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "flaky"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if err := delivery.Fail("transient fetch error"); err != nil {
		t.Fatalf("Failed to fail delivery: %v", err)
	}

	// Not visible until the retry delay elapses
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty during retry delay, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	redelivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue redelivery: %v", err)
	}
	if redelivery.Job().CardId != "flaky" {
		t.Fatalf("Expected flaky, got %s", redelivery.Job().CardId)
	}
	if redelivery.Attempts() != 2 {
		t.Fatalf("Expected attempt 2, got %d", redelivery.Attempts())
	}
}

func TestFailExhaustionDeadLetters(t *testing.T) {
	q, backend := newTestQueue(t, Config{MaxAttempts: 1, RetryDelay: time.Millisecond})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "poison"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if err := delivery.Fail("still broken"); err != nil {
		t.Fatalf("Failed to fail delivery: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty after dead-lettering, got %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Dead != 1 {
		t.Fatalf("Expected 1 dead job, got %d", stats.Dead)
	}
}

func TestVisibilityTimeoutRedelivery(t *testing.T) {
	q, backend := newTestQueue(t, Config{VisibilityTimeout: 20 * time.Millisecond})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "crashed-worker"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Claim and never settle, as a crashed worker would
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty while claim is live, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	redelivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue after claim expiry: %v", err)
	}
	if redelivery.Job().CardId != "crashed-worker" {
		t.Fatalf("Expected crashed-worker, got %s", redelivery.Job().CardId)
	}
	if redelivery.Attempts() != 2 {
		t.Fatalf("Expected attempt 2, got %d", redelivery.Attempts())
	}
}

func TestExpiredClaimDeadLetterPersists(t *testing.T) {
	q, backend := newTestQueue(t, Config{MaxAttempts: 1, VisibilityTimeout: 10 * time.Millisecond})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "abandoned"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Claim and never settle; the claim burns the only allowed attempt
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	// The expired claim is dead-lettered during this scan, and the move
	// must stick even though nothing was claimed
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty for exhausted job, got %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Ready != 0 || stats.Scheduled != 0 || stats.Dead != 1 {
		t.Fatalf("Expected job in dead-letter set, got %+v", stats)
	}

	// Subsequent polls must not resurrect it
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty on later poll, got %v", err)
	}
	stats, err = q.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Dead != 1 {
		t.Fatalf("Expected dead job to stay dead, got %+v", stats)
	}
}

func TestDequeueClaimsPastExhaustedJob(t *testing.T) {
	q, backend := newTestQueue(t, Config{MaxAttempts: 1, VisibilityTimeout: 10 * time.Millisecond})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "poison"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := q.Enqueue(ctx, core.Job{CardId: "healthy"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// One pass dead-letters the exhausted job and claims the next one
	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if delivery.Job().CardId != "healthy" {
		t.Fatalf("Expected healthy, got %s", delivery.Job().CardId)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Dead != 1 || stats.Scheduled != 1 {
		t.Fatalf("Expected 1 dead and 1 claimed, got %+v", stats)
	}
}

func TestDoubleSettle(t *testing.T) {
	q, backend := newTestQueue(t, Config{})
	defer backend.Close()

	ctx := context.Background()

	if err := q.Enqueue(ctx, core.Job{CardId: "once"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if err := delivery.Ack(); err != nil {
		t.Fatalf("Failed to ack: %v", err)
	}
	if err := delivery.Ack(); !errors.Is(err, ErrSettled) {
		t.Fatalf("Expected ErrSettled on second ack, got %v", err)
	}
	if err := delivery.Fail("nope"); !errors.Is(err, ErrSettled) {
		t.Fatalf("Expected ErrSettled on fail after ack, got %v", err)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	backend, err := storagebadger.OpenBackend(dir, false)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	q, err := New(backend, Config{})
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	ctx := context.Background()
	if err := q.Enqueue(ctx, core.Job{CardId: "durable"}); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Failed to close backend: %v", err)
	}

	backend, err = storagebadger.OpenBackend(dir, false)
	if err != nil {
		t.Fatalf("Failed to reopen backend: %v", err)
	}
	defer backend.Close()

	q, err = New(backend, Config{})
	if err != nil {
		t.Fatalf("Failed to recreate queue: %v", err)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue after reopen: %v", err)
	}
	if delivery.Job().CardId != "durable" {
		t.Fatalf("Expected durable, got %s", delivery.Job().CardId)
	}
}
