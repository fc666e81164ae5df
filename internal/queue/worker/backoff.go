package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff grows 2s, 4s, 8s... capped at 5 minutes, with up
// to 250ms of jitter to spread concurrent retries.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
