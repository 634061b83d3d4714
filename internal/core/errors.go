// Package core holds the error contracts shared by the API clients and the worker pool.
package core

import "time"

// TransientError marks an error as retryable. Clients wrap rate-limit and 5xx responses in
// it so the worker pool retries them with backoff.
type TransientError struct {
	Err error
	// RetryAfter is the provider's requested wait, from a Retry-After header. Zero means
	// use the pool's own backoff.
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RetryDelay implements the worker pool's retry-hint contract.
func (e *TransientError) RetryDelay() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

// LimitedTransientError is retryable, but only up to ExtraRetries times regardless of the
// pool's configured MaxRetries.
type LimitedTransientError struct {
	Err          error
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MaxExtraRetries implements the worker pool's retry-cap contract.
func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}
