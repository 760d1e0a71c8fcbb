package apperrors

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// retryBaseDelay is the base of the jittered backoff applied between
// PersistenceTransient retry attempts; each attempt waits a random duration
// in [base, 2*base), doubling base afterward.
const retryBaseDelay = 100 * time.Millisecond

// RetryPersistence runs fn, retrying up to two additional times (three
// attempts total) with jittered exponential backoff whenever fn returns a
// PersistenceTransient error — per spec §7's "retry up to 3x with jittered
// backoff" policy. Any other error, including PersistenceFatal, returns
// immediately without retrying. Backoff waits respect ctx cancellation.
func RetryPersistence(ctx context.Context, fn func() error) error {
	const attempts = 3
	delay := retryBaseDelay

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		var transient *PersistenceTransient
		if err == nil || !errors.As(err, &transient) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		wait := delay + time.Duration(rand.Int64N(int64(delay)))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		delay *= 2
	}
	return err
}
