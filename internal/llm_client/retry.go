package llm_client

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryPolicy retries rate-limited oracle calls with exponential backoff and
// random jitter. Sleep and Jitter are injectable so tests run without delays.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Sleep       func(time.Duration)
	Jitter      func(max time.Duration) time.Duration
}

// DefaultRetry mirrors the oracle quota behavior: three attempts, 5s base
// delay doubling each round, up to 2s of jitter.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   5 * time.Second,
	MaxJitter:   2 * time.Second,
}

// IsRateLimited reports whether err looks like a quota / 429 signal from any
// backend. Everything else is treated as non-retryable.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota")
}

// Do runs call, sleeping between rate-limited attempts. Non-retryable errors
// and context cancellation return immediately. Exceeding the ceiling returns
// the last rate-limit error; it is fatal to this call, not to the process.
func (p RetryPolicy) Do(ctx context.Context, call func() (string, error)) (string, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		}
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		sleep(delay + jitter(p.MaxJitter))
		delay *= 2
	}
	return "", lastErr
}
