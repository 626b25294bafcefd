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


package acquire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopwork/cardpile/core"
)

// Acquirer produces the raw text content for a card source.
// Implementations must be thread-safe for concurrent use.
type Acquirer interface {
	// Acquire fetches the text content for the given source. Transient
	// failures are reported as *AcquisitionError; unsupported card types
	// as ErrUnsupportedSourceType.
	Acquire(ctx context.Context, cardType core.CardType, source string) (string, error)
}

// Resolver dispatches acquisition to the strategy for each card type.
type Resolver struct {
	crawler     *CrawlerClient
	transcriber *Transcriber
	logger      *slog.Logger
}

var _ Acquirer = (*Resolver)(nil)

// NewResolver creates a Resolver using the given crawler and transcriber.
func NewResolver(crawler *CrawlerClient, transcriber *Transcriber) *Resolver {
	return &Resolver{
		crawler:     crawler,
		transcriber: transcriber,
		logger:      slog.Default().With("component", "acquire"),
	}
}

// Acquire fetches content for a card source according to its type.
func (r *Resolver) Acquire(ctx context.Context, cardType core.CardType, source string) (string, error) {
	if source == "" {
		return "", core.ErrEmptySource
	}

	r.logger.Debug("acquiring content", "type", cardType, "source", source)

	switch cardType {
	case core.CardTypeText:
		// Pasted text is already the content.
		return source, nil

	case core.CardTypeURL, core.CardTypeTweet:
		return r.crawler.Scrape(ctx, source)

	case core.CardTypeYouTube:
		return r.transcriber.Transcribe(ctx, source)

	case core.CardTypePDF, core.CardTypeSpotify:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSourceType, cardType)

	default:
		return "", fmt.Errorf("%w: %s", core.ErrInvalidCardType, cardType)
	}
}
