package batch

import "time"

// RetryPolicy describes the exponential backoff applied when the ledger
// backend signals a rate-limit condition. MaxAttempts counts the first try:
// a policy with MaxAttempts 3 performs at most two retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy mirrors the hosted ledger's published guidance:
// three attempts, two seconds doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}
}

// Delay returns the backoff before retry number n (1-based: Delay(1) is
// the pause after the first failed attempt). BaseDelay * Multiplier^(n-1).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}
