package llm_client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testPolicy(slept *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxJitter:   2 * time.Second,
		Sleep:       func(d time.Duration) { *slept = append(*slept, d) },
		Jitter:      func(time.Duration) time.Duration { return 0 },
	}
}

func TestRetrySucceedsAfterRateLimits(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	calls := 0
	out, err := p.Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("googleapi: Error 429: quota exceeded")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("out = %q, want ok", out)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Exponential doubling: 5s then 10s.
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("slept = %v, want %v", slept, want)
	}
}

func TestRetryCeilingReturnsLastError(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	calls := 0
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", fmt.Errorf("quota exhausted, attempt %d", calls)
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want ceiling of 3", calls)
	}
	if err.Error() != "quota exhausted, attempt 3" {
		t.Errorf("err = %v, want the last attempt's error", err)
	}
}

func TestRetryNonRetryableFailsFast(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(&slept)

	calls := 0
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("invalid request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a non-retryable error", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v, want no backoff for a non-retryable error", slept)
	}
}

func TestRetryJitterIsAdded(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   5 * time.Second,
		MaxJitter:   2 * time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
		Jitter:      func(time.Duration) time.Duration { return time.Second },
	}
	_, _ = p.Do(context.Background(), func() (string, error) {
		return "", errors.New("429")
	})
	if len(slept) != 1 || slept[0] != 6*time.Second {
		t.Errorf("slept = %v, want [6s] (base + jitter)", slept)
	}
}

func TestIsRateLimited(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "HTTP 429", err: errors.New("Error 429: too many requests"), expected: true},
		{name: "Quota message", err: errors.New("Resource Quota exceeded"), expected: true},
		{name: "Unrelated error", err: errors.New("connection refused"), expected: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.expected {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.expected)
			}
		})
	}
}
