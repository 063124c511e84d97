package transport

import (
	"math"
	"math/rand/v2"
	"time"
)

// Delay returns the wait before dial attempt N (1-based). With Jitter the
// delay is scaled into [0.5, 1.5).
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	growth := math.Max(b.Multiplier, 1.0)
	delay := float64(b.InitialDelay) * math.Pow(growth, float64(max(attempt, 1)-1))
	if b.MaxDelay > 0 {
		delay = math.Min(delay, float64(b.MaxDelay))
	}
	if b.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	return time.Duration(delay)
}
