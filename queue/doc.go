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


// Package queue provides a durable, at-least-once job queue on BadgerDB.
//
// Jobs survive process restarts: enqueued work is written to the same
// database as cards and chunks, and a crashed worker's claim expires after
// the visibility timeout, making the job deliverable again.
//
// # Delivery semantics
//
// Dequeue claims the oldest visible job, increments its attempt count and
// hides it for the visibility timeout. The caller must finish with exactly
// one of:
//
//   - Delivery.Ack: the job is done and removed.
//   - Delivery.Fail: the job is rescheduled with a delay, or moved to the
//     dead-letter set once MaxAttempts is exhausted.
//
// A delivery that is neither acked nor failed reappears when its claim
// expires. Consumers must therefore tolerate duplicate deliveries.
package queue
