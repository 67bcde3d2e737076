package channel

import (
	"math"
	"time"
)

// DefaultReconnectDelay is the wait before every reconnection attempt when
// nothing else is configured.
const DefaultReconnectDelay = 5 * time.Second

// Backoff computes reconnection delays. With Multiplier <= 1 every attempt
// waits Initial. Otherwise the delay grows by Multiplier per failed
// attempt and is capped at Max. There is no limit on the number of
// attempts.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Next returns the delay before reconnection attempt number attempt
// (0-based, reset after every successful open).
func (b Backoff) Next(attempt int) time.Duration {
	d := b.Initial
	if d <= 0 {
		d = DefaultReconnectDelay
	}
	if b.Multiplier <= 1 || attempt <= 0 {
		return d
	}

	ceiling := b.Max
	if ceiling < d {
		ceiling = d
	}

	grown := float64(d) * math.Pow(b.Multiplier, float64(attempt))
	if math.IsInf(grown, 0) || grown >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(grown)
}
