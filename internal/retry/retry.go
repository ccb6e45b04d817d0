// Package retry provides an exponential-backoff-with-jitter executor for
// fallible operations. Callers get a result envelope with the attempt
// history instead of a bare error, so higher layers can distinguish "failed
// immediately" from "exhausted every attempt".
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Retryable marks an error as retryable regardless of its message.
// Wrap transient errors in it when the producer knows better than the
// signature match.
type Retryable struct {
	Err error
}

func (r *Retryable) Error() string { return r.Err.Error() }
func (r *Retryable) Unwrap() error { return r.Err }

// Policy configures the executor. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Jitter is the relative jitter applied to every delay, e.g. 0.1 for
	// ±10%.
	Jitter float64
	// RetryableMessages are substrings matched case-insensitively against
	// the error text.
	RetryableMessages []string
	// RetryableHTTPStatus are HTTP status codes considered transient when
	// the error carries one (see HTTPStatusError).
	RetryableHTTPStatus []int

	// now and sleep are test seams.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used by every remote call: 3 attempts,
// 1s base delay doubling up to 30s, ±10% jitter, retrying on transient
// transport signatures and HTTP 5xx/408/429.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            0.1,
		RetryableMessages: []string{
			"timeout",
			"timed out",
			"connection reset",
			"connection refused",
			"socket hang up",
			"temporary failure",
			"no such host",
			"eof",
		},
		RetryableHTTPStatus: []int{408, 429, 500, 502, 503, 504},
	}
}

// HTTPStatusError carries the HTTP status of a failed request so the policy
// can match on 5xx/408/429.
type HTTPStatusError struct {
	Status  int
	Message string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Result is the outcome envelope of Execute.
type Result struct {
	Success    bool
	Err        error
	Attempts   int
	TotalDelay time.Duration
}

// Execute runs op until it succeeds, exhausts MaxAttempts, hits a
// non-retryable error, or the context is cancelled. It never returns a Go
// error itself; inspect the Result.
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context) error) Result {
	res := Result{}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res.Attempts = attempt

		err := op(ctx)
		if err == nil {
			res.Success = true
			return res
		}
		res.Err = err

		if !p.isRetryable(err) || attempt == p.MaxAttempts {
			return res
		}

		delay := p.DelayFor(attempt)
		res.TotalDelay += delay
		if err := p.doSleep(ctx, delay); err != nil {
			res.Err = err
			return res
		}
	}

	return res
}

// WithRetry is the exception-semantics convenience wrapper: it returns the
// final error when every attempt failed.
func (p Policy) WithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	res := p.Execute(ctx, op)
	if res.Success {
		return nil
	}
	return res.Err
}

// DelayFor returns the backoff delay before the attempt following attempt n
// (1-based), with jitter applied.
func (p Policy) DelayFor(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		// Uniform in [-jitter, +jitter].
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

func (p Policy) isRetryable(err error) bool {
	var retryable *Retryable
	if errors.As(err, &retryable) {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		for _, code := range p.RetryableHTTPStatus {
			if statusErr.Status == code {
				return true
			}
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range p.RetryableMessages {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func (p Policy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
