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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidCard indicates a Card failed validation.
	ErrInvalidCard = errors.New("invalid card")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidCardType indicates an invalid CardType value.
	ErrInvalidCardType = errors.New("invalid card type")

	// ErrInvalidCardStatus indicates an invalid CardStatus value.
	ErrInvalidCardStatus = errors.New("invalid card status")

	// ErrInvalidTransition indicates an illegal card status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptySource indicates the Source field is empty.
	ErrEmptySource = errors.New("source cannot be empty")

	// ErrEmptyChunkText indicates the chunk Text field is empty.
	ErrEmptyChunkText = errors.New("chunk text cannot be empty")

	// ErrMissingCardId indicates a chunk does not reference a card.
	ErrMissingCardId = errors.New("chunk must reference a card")

	// ErrVectorDimension indicates an embedding vector of the wrong length.
	ErrVectorDimension = errors.New("embedding vector has wrong dimension")
)
