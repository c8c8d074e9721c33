// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package policy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pdiddy/research-assistant/internal/tools"
)

// Do calls fn up to attempts times, backing off exponentially from
// BaseDelay while fn fails with a transient error. Non-transient errors
// return immediately.
func Do(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			delay := time.Duration(math.Pow(2, float64(n-2))) * BaseDelay
			if delay > MaxDelay {
				delay = MaxDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if tools.Classify(lastErr) != tools.ClassTransient {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
