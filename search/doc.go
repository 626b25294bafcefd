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


// Package search provides semantic search over a card collection's chunks.
//
// The Searcher embeds the query, finds the closest chunk vectors, and
// applies a verbatim keyword boost with stop-word filtering, so exact-word
// matches rank above purely semantic neighbors.
//
// FetchContext assembles retrieval context from the top matches: the chunk
// texts joined with a separator plus the set of cards they came from,
// ready to be handed to a downstream answering step.
package search
