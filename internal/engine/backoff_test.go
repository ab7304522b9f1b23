package engine

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestRetryBackOff_DoublesWithoutJitter(t *testing.T) {
	d := 100 * time.Millisecond
	b := newRetryBackOff(d)

	want := d
	for i := 0; i < maxBackoffDoublings; i++ {
		assert.Equal(t, want, b.NextBackOff(), "attempt %d", i)
		want *= 2
	}
}

func TestRetryBackOff_CapsAndNeverStops(t *testing.T) {
	d := time.Millisecond
	b := newRetryBackOff(d)
	limit := d << maxBackoffDoublings

	for i := 0; i < maxBackoffDoublings; i++ {
		b.NextBackOff()
	}
	for i := 0; i < 50; i++ {
		next := b.NextBackOff()
		assert.NotEqual(t, backoff.Stop, next)
		assert.Equal(t, limit, next)
	}
}

func TestRetryBackOff_ResetStartsOver(t *testing.T) {
	d := 10 * time.Millisecond
	b := newRetryBackOff(d)

	b.NextBackOff()
	b.NextBackOff()
	b.Reset()
	assert.Equal(t, d, b.NextBackOff())
}
