package offsync

import "time"

// RetryPolicy decides whether a failed item gets another attempt and how
// long the engine waits before the retry cycle. attempt is the number of
// failed attempts recorded so far.
//
// The scheduler only talks to this interface, so a backoff implementation
// can be substituted without touching it.
type RetryPolicy interface {
	ShouldRetry(attempt int) bool
	NextDelay(attempt int) time.Duration
}

// FixedDelayPolicy retries a bounded number of times with a constant
// delay. This is the baseline policy.
type FixedDelayPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy returns the engine default: 3 attempts, 30s apart.
func DefaultRetryPolicy() *FixedDelayPolicy {
	return &FixedDelayPolicy{MaxRetries: 3, Delay: 30 * time.Second}
}

func (p *FixedDelayPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

func (p *FixedDelayPolicy) NextDelay(attempt int) time.Duration {
	return p.Delay
}

// ExponentialBackoffPolicy is a drop-in replacement with exponentially
// growing delays capped at MaxDelay. A zero MaxDelay means uncapped.
type ExponentialBackoffPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (p *ExponentialBackoffPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

func (p *ExponentialBackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
	}

	result := time.Duration(delay)
	if p.MaxDelay > 0 && result > p.MaxDelay {
		result = p.MaxDelay
	}
	return result
}
