// Copyright 2026 Loopwork Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/loopwork/cardpile/core"
	storagebadger "github.com/loopwork/cardpile/storage/badger"
)

// Config holds queue tuning parameters. The zero value gets sensible
// defaults from Normalize.
type Config struct {
	// Name namespaces the queue's keys within the shared database.
	Name string

	// VisibilityTimeout is how long a dequeued job stays hidden before an
	// unacked claim expires and the job becomes deliverable again.
	VisibilityTimeout time.Duration

	// MaxAttempts is the delivery budget before a job is dead-lettered.
	MaxAttempts int

	// RetryDelay is the base delay applied when a delivery is failed. The
	// actual delay grows linearly with the attempt count.
	RetryDelay time.Duration
}

// Normalize fills in defaults for unset fields.
func (c *Config) Normalize() {
	if c.Name == "" {
		c.Name = "card-processing"
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 5 * time.Minute
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 30 * time.Second
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.VisibilityTimeout < 0 {
		return fmt.Errorf("%w: negative visibility timeout", ErrInvalidConfig)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative max attempts", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: negative retry delay", ErrInvalidConfig)
	}
	return nil
}

// Stats is a point-in-time snapshot of the queue.
type Stats struct {
	Ready     int // visible, waiting for a worker
	Scheduled int // hidden: claimed or delayed for retry
	Dead      int // delivery budget exhausted
}

// Queue is a durable at-least-once job queue stored in BadgerDB.
// Safe for concurrent use.
type Queue struct {
	backend *storagebadger.Backend
	cfg     Config
	logger  *slog.Logger

	// Dequeue serializes claims so two workers never race on the same
	// index entry within one process.
	mu sync.Mutex
}

// New creates a queue on the given backend.
func New(backend *storagebadger.Backend, cfg Config) (*Queue, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		backend: backend,
		cfg:     cfg,
		logger:  slog.Default().With("queue", cfg.Name),
	}, nil
}

// Enqueue makes a job immediately visible for delivery.
func (q *Queue) Enqueue(ctx context.Context, job core.Job) error {
	if job.CardId == "" {
		return core.ErrMissingCardId
	}

	now := time.Now().UTC()
	msg := message{
		Id:         uuid.NewString(),
		Job:        job,
		EnqueuedAt: now,
		VisibleAt:  now,
		Attempts:   0,
	}

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(q.msgKey(msg.Id), marshalMessage(msg)); err != nil {
			return err
		}
		if err := tx.Set(q.indexKey(msg.VisibleAt, msg.Id), nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	q.logger.Debug("enqueued job", "card_id", job.CardId, "message_id", msg.Id)
	return nil
}

// Dequeue claims the oldest visible job. Returns ErrEmpty when nothing is
// deliverable right now. The claimed job stays hidden for the visibility
// timeout; the caller must Ack or Fail the returned delivery.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed message

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		var (
			claimKey  []byte
			candidate *message
			staleKeys [][]byte
			deadKeys  [][]byte
			deadMsgs  []message
		)

		// Scan first, write after: badger panics on commit while a
		// transaction still has a live iterator.
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		iter := tx.NewIterator(opts)

		now := time.Now().UTC()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			visibleAt, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Index is ordered by visibility time: the first future
			// entry means nothing else is ready either.
			if visibleAt.After(now) {
				break
			}

			item, err := tx.Get(q.msgKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Stale index entry.
					staleKeys = append(staleKeys, key)
					continue
				}
				iter.Close()
				return err
			}

			var msg message
			err = item.Value(func(val []byte) error {
				var err error
				msg, err = unmarshalMessage(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}

			if msg.Attempts >= q.cfg.MaxAttempts {
				// Claim expired once too often without a Fail.
				deadKeys = append(deadKeys, key)
				deadMsgs = append(deadMsgs, msg)
				continue
			}

			claimKey = key
			candidate = &msg
			break
		}
		iter.Close()

		for _, key := range staleKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		for i, msg := range deadMsgs {
			q.logger.Warn("dead-lettering job",
				"card_id", msg.Job.CardId,
				"message_id", msg.Id,
				"attempts", msg.Attempts,
				"reason", "claim expired with attempts exhausted")
			if err := q.deadLetter(tx, deadKeys[i], msg); err != nil {
				return err
			}
		}

		if candidate == nil {
			// Commit the cleanup even when no job was claimed, or dead
			// messages would reappear as ready on every poll.
			if len(staleKeys) > 0 || len(deadMsgs) > 0 {
				if err := tx.Commit(); err != nil {
					return err
				}
			}
			return ErrEmpty
		}

		msg := *candidate
		msg.Attempts++
		msg.VisibleAt = now.Add(q.cfg.VisibilityTimeout)

		if err := tx.Set(q.msgKey(msg.Id), marshalMessage(msg)); err != nil {
			return err
		}
		if err := tx.Delete(claimKey); err != nil {
			return err
		}
		if err := tx.Set(q.indexKey(msg.VisibleAt, msg.Id), nil); err != nil {
			return err
		}

		claimed = msg
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("claimed job",
		"card_id", claimed.Job.CardId,
		"message_id", claimed.Id,
		"attempt", claimed.Attempts)

	return &Delivery{queue: q, msg: claimed}, nil
}

// Stats reports queue depth by scanning the visibility index and the
// dead-letter set.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		now := time.Now().UTC()

		prefix := q.indexPrefix()
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			visibleAt, _, err := q.parseIndexKey(iter.Item().Key())
			if err != nil {
				continue
			}
			if visibleAt.After(now) {
				stats.Scheduled++
			} else {
				stats.Ready++
			}
		}

		deadPrefix := q.deadPrefix()
		for iter.Seek(deadPrefix); iter.ValidForPrefix(deadPrefix); iter.Next() {
			stats.Dead++
		}

		return nil
	}, false)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Delivery is a single claimed job. Exactly one of Ack or Fail must be
// called.
type Delivery struct {
	queue *Queue
	msg   message

	mu      sync.Mutex
	settled bool
}

// Job returns the claimed job.
func (d *Delivery) Job() core.Job {
	return d.msg.Job
}

// Attempts returns the delivery attempt count, including this delivery.
func (d *Delivery) Attempts() int {
	return d.msg.Attempts
}

// Ack removes the job from the queue.
func (d *Delivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrSettled
	}
	d.settled = true

	q := d.queue
	return q.backend.WithTx(func(tx *badger.Txn) error {
		msg, key, err := q.readMessage(tx, d.msg.Id)
		if err != nil {
			return err
		}
		if key == nil {
			return nil // already removed
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Delete(q.msgKey(msg.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Fail reschedules the job for a later delivery, or dead-letters it once
// the attempt budget is exhausted.
func (d *Delivery) Fail(reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrSettled
	}
	d.settled = true

	q := d.queue
	return q.backend.WithTx(func(tx *badger.Txn) error {
		msg, key, err := q.readMessage(tx, d.msg.Id)
		if err != nil {
			return err
		}
		if key == nil {
			return nil // already removed
		}

		if msg.Attempts >= q.cfg.MaxAttempts {
			q.logger.Warn("dead-lettering job",
				"card_id", msg.Job.CardId,
				"message_id", msg.Id,
				"attempts", msg.Attempts,
				"reason", reason)
			if err := q.deadLetter(tx, key, msg); err != nil {
				return err
			}
			return tx.Commit()
		}

		msg.VisibleAt = time.Now().UTC().Add(q.cfg.RetryDelay * time.Duration(msg.Attempts))

		q.logger.Info("rescheduling job",
			"card_id", msg.Job.CardId,
			"message_id", msg.Id,
			"attempt", msg.Attempts,
			"visible_at", msg.VisibleAt,
			"reason", reason)

		if err := tx.Set(q.msgKey(msg.Id), marshalMessage(msg)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Set(q.indexKey(msg.VisibleAt, msg.Id), nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readMessage loads a message and its current index key. Returns a nil key
// when the message no longer exists.
func (q *Queue) readMessage(tx *badger.Txn, id string) (message, []byte, error) {
	item, err := tx.Get(q.msgKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return message{}, nil, nil
		}
		return message{}, nil, err
	}

	var msg message
	err = item.Value(func(val []byte) error {
		var err error
		msg, err = unmarshalMessage(val)
		return err
	})
	if err != nil {
		return message{}, nil, err
	}

	return msg, q.indexKey(msg.VisibleAt, msg.Id), nil
}

// deadLetter moves a message out of the live queue into the dead-letter
// set, keyed by message ID so exhausted jobs remain inspectable.
func (q *Queue) deadLetter(tx *badger.Txn, indexKey []byte, msg message) error {
	if err := tx.Set(q.deadKey(msg.Id), marshalMessage(msg)); err != nil {
		return err
	}
	if err := tx.Delete(indexKey); err != nil {
		return err
	}
	return tx.Delete(q.msgKey(msg.Id))
}

// Key layout (all namespaced by queue name):
//
//	job:<name>:msg:<id>            -> message envelope
//	job:<name>:idx:<visibleAt><id> -> nil, ordered by visibility time
//	job:<name>:dead:<id>           -> exhausted message envelope

func (q *Queue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("job:%s:msg:%s", q.cfg.Name, id))
}

func (q *Queue) indexPrefix() []byte {
	return []byte(fmt.Sprintf("job:%s:idx:", q.cfg.Name))
}

func (q *Queue) indexKey(visibleAt time.Time, id string) []byte {
	prefix := q.indexPrefix()
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// BigEndian timestamp keeps the index sorted oldest-visible first
	binary.BigEndian.PutUint64(buf[offset:], uint64(visibleAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

func (q *Queue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := q.indexPrefix()
	if len(key) < len(prefix)+8 {
		return time.Time{}, "", errors.New("malformed index key")
	}
	us := binary.BigEndian.Uint64(key[len(prefix):])
	id := string(key[len(prefix)+8:])
	return time.UnixMicro(int64(us)).UTC(), id, nil
}

func (q *Queue) deadPrefix() []byte {
	return []byte(fmt.Sprintf("job:%s:dead:", q.cfg.Name))
}

func (q *Queue) deadKey(id string) []byte {
	return []byte(fmt.Sprintf("job:%s:dead:%s", q.cfg.Name, id))
}
