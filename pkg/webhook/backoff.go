package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy returns the delay before retry number attempt (starting at 1).
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay per attempt up to MaxInterval, spread
// by ±JitterFactor.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	limit := e.MaxInterval
	if limit <= 0 {
		limit = 30 * time.Second
	}

	interval := float64(initial) * math.Pow(2, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	return time.Duration(min(interval, float64(limit)))
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(f)
}

// DefaultBackoff starts at one second and caps at thirty.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		JitterFactor:    0.1,
	}
}
