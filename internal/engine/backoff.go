package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxBackoffDoublings caps the retry delay at delay * 2^10.
const maxBackoffDoublings = 10

// newRetryBackOff returns delay, 2*delay, 4*delay, ... without jitter and
// without an elapsed-time limit. The retry budget is enforced by the caller.
func newRetryBackOff(delay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = delay << maxBackoffDoublings
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
