package store

import (
	"context"
	"errors"
)

// ErrConflict signals that a versioned write lost a race with another writer.
var ErrConflict = errors.New("concurrent modification")

// DefaultAttempts bounds optimistic read-modify-write loops.
const DefaultAttempts = 3

// Optimistic runs fn until it succeeds, fails with something other than
// ErrConflict, or attempts are exhausted. onRetry, if set, is called before
// every repeat.
func Optimistic(ctx context.Context, attempts int, onRetry func(attempt int), fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && onRetry != nil {
			onRetry(attempt)
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn(ctx)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
