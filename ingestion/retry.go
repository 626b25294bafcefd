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


package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// Result reports how a retried operation concluded.
type Result struct {
	// Attempts is the number of times the operation ran.
	Attempts int
}

// Retry runs an operation up to maxAttempts times with a fixed delay
// between attempts.
// Returns the error from the last attempt if all attempts fail.
func Retry(ctx context.Context, operation func() error, maxAttempts int, delay time.Duration) (Result, error) {
	if maxAttempts <= 0 {
		return Result{}, ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt - 1}, ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return Result{Attempts: attempt}, nil
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Attempts: attempt}, ctx.Err()
		case <-timer.C:
		}
	}

	return Result{Attempts: maxAttempts}, lastErr
}
