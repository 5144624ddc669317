package services

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays with jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (1-based).
// The delay doubles each attempt from Base, is capped at Max and carries
// up to 25% jitter in either direction.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 || b.Base <= 0 {
		return 0
	}
	// Cap attempt to avoid overflow in the shift.
	if attempt > 30 {
		attempt = 30
	}
	d := b.Base * time.Duration(1<<uint(attempt-1))
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	quarter := int64(d) / 4
	if quarter == 0 {
		return d
	}
	jitter := time.Duration(rand.Int64N(2*quarter+1) - quarter)
	return d + jitter
}

// sleep waits for d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
