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


// Package storage provides the storage abstraction layer for cardpile.
//
// This package defines repository interfaces that decouple storage
// implementation from the ingestion pipeline. It allows different storage
// backends (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - CardRepository: card lifecycle and status transitions
//   - ChunkRepository: a card's chunk set and vector similarity search
//
// Public constructors in backend packages return these interfaces to
// prevent accidental coupling to backend specifics.
//
// # Atomicity
//
// ChunkRepository.ReplaceChunks is the pipeline's only multi-record write
// and is required to be all-or-nothing: a failed batch must leave the
// previously stored chunk set untouched.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
