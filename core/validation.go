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

import "fmt"

// ValidateCard validates a Card according to domain rules.
//
// Validation rules:
//   - Type must be a known CardType
//   - Status must be a known CardStatus
//   - Source must not be empty
//
// NOT validated (populated by the ingestion pipeline):
//   - Content (empty until acquisition succeeds)
//   - ErrorMessage (empty unless the last attempt failed)
func ValidateCard(card *Card) error {
	if card == nil {
		return fmt.Errorf("%w: card is nil", ErrInvalidCard)
	}

	if err := ValidateCardType(card.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}

	if err := ValidateCardStatus(card.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}

	if card.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCard, ErrEmptySource)
	}

	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
// dimensions is the declared embedding dimensionality; pass 0 to skip the
// vector length check (for chunks that have not been embedded yet).
func ValidateChunk(chunk *Chunk, dimensions int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.CardId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingCardId)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkText)
	}

	if dimensions > 0 && len(chunk.Vector) != dimensions {
		return fmt.Errorf("%w: %w: want %d, got %d",
			ErrInvalidChunk, ErrVectorDimension, dimensions, len(chunk.Vector))
	}

	return nil
}

// ValidateCardType validates that a CardType has a valid value.
func ValidateCardType(t CardType) error {
	switch t {
	case CardTypeText, CardTypeURL, CardTypePDF, CardTypeYouTube, CardTypeSpotify, CardTypeTweet:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidCardType, t)
	}
}

// ValidateCardStatus validates that a CardStatus has a valid value.
func ValidateCardStatus(s CardStatus) error {
	switch s {
	case CardStatusPending, CardStatusProcessing, CardStatusCompleted, CardStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidCardStatus, s)
	}
}

// ValidateTransition validates a card status transition.
func ValidateTransition(from, to CardStatus) error {
	if err := ValidateCardStatus(from); err != nil {
		return err
	}
	if err := ValidateCardStatus(to); err != nil {
		return err
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
