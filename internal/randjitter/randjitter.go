// Package randjitter computes the exponential-backoff-plus-random-window
// retransmit deadlines used by announce scheduling (§4.3.3, §4.4.2),
// isolated from the transport package so it can be unit-tested without a
// Transport value. Uses math/rand/v2, matching transport/mqtt's
// randomString client id generation.
package randjitter

import (
	"math/rand/v2"
	"time"
)

// Backoff computes C^hops seconds as a time.Duration, the exponential
// term shared by both the first-transmit and retry deadlines.
func Backoff(base float64, hops uint8) time.Duration {
	factor := 1.0
	for i := uint8(0); i < hops; i++ {
		factor *= base
	}
	return time.Duration(factor * float64(time.Second))
}

// Window returns a random, uniformly distributed duration in [0, width).
// A non-positive width always returns zero.
func Window(width time.Duration) time.Duration {
	if width <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(width)))
}

// NextDeadline computes now + C^hops + extra + U(0, jitterWindow), the
// shape shared by the announce's first-transmit deadline (extra=0) and
// the maintenance loop's retry deadline (extra=AnnounceRetryGrace +
// AnnounceJitterWindow, jitterWindow=0).
func NextDeadline(now time.Time, base float64, hops uint8, extra, jitterWindow time.Duration) time.Time {
	return now.Add(Backoff(base, hops)).Add(extra).Add(Window(jitterWindow))
}
