// Copyright 2026 Meridian Systems
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

package engine

import (
	"context"
	"log/slog"
	"time"
)

// maxBackoffDelay caps the doubling so a large attempt budget cannot
// stretch single waits into minutes.
const maxBackoffDelay = 30 * time.Second

// RetryWithBackoff runs op up to maxAttempts times, waiting between
// attempts with capped exponential backoff starting at baseDelay.
// Returns the last attempt's error, or the context error if ctx ends
// first. A wait in progress is interrupted by ctx.
func RetryWithBackoff(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		slog.Debug("retrying after failure", "attempt", attempt, "max_attempts", maxAttempts, "err", lastErr)

		timer := time.NewTimer(backoffDelay(attempt, baseDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// backoffDelay is baseDelay doubled attempt-1 times, capped at
// maxBackoffDelay.
func backoffDelay(attempt int, baseDelay time.Duration) time.Duration {
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoffDelay {
			return maxBackoffDelay
		}
	}
	return delay
}

// callCtx bounds one external call so a hung collaborator surfaces as
// a retriable deadline error instead of stalling the run. A
// non-positive timeout leaves the parent context as is.
func callCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
