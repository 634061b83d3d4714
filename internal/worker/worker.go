// Package worker runs a processor over a batch with bounded concurrency, a global rate limit,
// per-item timeouts and transient-error retries. A failing or panicking item never takes the
// rest of the batch down unless FailurePolicyFailFast is chosen.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shpitdev/leadfinder/internal/core"
)

type FailurePolicy int

const (
	FailurePolicyPartialOutput FailurePolicy = iota
	FailurePolicyFailFast
)

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	FailurePolicy FailurePolicy

	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
	// RetryAfterMax caps a provider's Retry-After hint. Longer hints fail the item instead
	// of stalling a worker.
	RetryAfterMax time.Duration

	// OnRetry, when set, is called before each retry sleep. It may run on any worker goroutine.
	OnRetry func(attempt int, err error, sleep time.Duration)
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index    int
	Input    In
	Output   Out
	Err      error
	Attempts int
}

// PanicError is recorded for an item whose processor panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("processor panic: %v", e.Value)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 10
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	if o.RetryAfterMax <= 0 {
		o.RetryAfterMax = 30 * time.Second
	}
	return o
}

// ProcessAll runs the processor over all input items. Results are returned in input order.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	opts Options,
) ([]Result[In, Out], error) {
	return ProcessAllWithCallback(ctx, items, processor, nil, opts)
}

// ProcessAllWithCallback is ProcessAll with onResult invoked as each item completes, in
// completion order, on the calling goroutine. An onResult error stops the batch.
func ProcessAllWithCallback[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) (Out, error),
	onResult func(Result[In, Out]) error,
	opts Options,
) ([]Result[In, Out], error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := &batch[In, Out]{
		opts:      opts.withDefaults(),
		processor: processor,
		cancel:    cancel,
	}
	if b.opts.RateLimitRPS > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(b.opts.RateLimitRPS), 1)
	}

	out := make([]Result[In, Out], len(items))
	for res := range b.start(runCtx, items) {
		out[res.Index] = res
		if onResult != nil {
			b.stop(onResult(res))
		}
	}

	if err := b.err(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// batch is the shared state of one ProcessAllWithCallback call.
type batch[In any, Out any] struct {
	opts      Options
	processor func(context.Context, In) (Out, error)
	limiter   *rate.Limiter
	cancel    context.CancelFunc

	mu       sync.Mutex
	firstErr error
}

type job[In any] struct {
	idx int
	in  In
}

// start feeds items to the workers and returns their results. The channel closes once every
// worker has exited.
func (b *batch[In, Out]) start(ctx context.Context, items []In) <-chan Result[In, Out] {
	jobs := make(chan job[In])
	done := make(chan Result[In, Out], b.opts.Workers)

	var wg sync.WaitGroup
	for range b.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.work(ctx, jobs, done)
		}()
	}
	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job[In]{idx: i, in: item}:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (b *batch[In, Out]) work(ctx context.Context, jobs <-chan job[In], done chan<- Result[In, Out]) {
	for j := range jobs {
		if ctx.Err() != nil {
			return
		}
		res := b.process(ctx, j.idx, j.in)
		select {
		case done <- res:
		case <-ctx.Done():
			return
		}
		if res.Err != nil && b.opts.FailurePolicy == FailurePolicyFailFast {
			b.stop(res.Err)
			return
		}
	}
}

// stop records the first batch-ending error and cancels the remaining work.
func (b *batch[In, Out]) stop(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.firstErr == nil {
		b.firstErr = err
		b.cancel()
	}
}

func (b *batch[In, Out]) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firstErr
}

// process runs one item to completion, retrying transient failures with backoff.
func (b *batch[In, Out]) process(ctx context.Context, idx int, item In) Result[In, Out] {
	res := Result[In, Out]{Index: idx, Input: item}
	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				res.Err = err
				return res
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
		res.Output, res.Err = safeCall(callCtx, item, b.processor)
		cancel()
		if res.Err == nil {
			return res
		}
		if errors.Is(res.Err, context.Canceled) && ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		if !isTransient(res.Err) || attempt >= maxExtraRetries(b.opts.MaxRetries, res.Err) {
			return res
		}

		sleep, ok := b.retrySleep(res.Err, attempt)
		if !ok {
			return res
		}
		if b.opts.OnRetry != nil {
			b.opts.OnRetry(attempt+1, res.Err, sleep)
		}
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			res.Err = ctx.Err()
			return res
		}
	}
}

// retrySleep prefers the provider's Retry-After hint over exponential backoff. ok is false
// when the hint exceeds RetryAfterMax.
func (b *batch[In, Out]) retrySleep(err error, attempt int) (time.Duration, bool) {
	var hint retryHint
	if errors.As(err, &hint) {
		if d := hint.RetryDelay(); d > 0 {
			return d, d <= b.opts.RetryAfterMax
		}
	}
	return backoffSleep(b.opts.BackoffInitial, b.opts.BackoffMax, b.opts.BackoffJitterFrac, attempt), true
}

func safeCall[In any, Out any](ctx context.Context, item In, processor func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return processor(ctx, item)
}

type retryCap interface {
	MaxExtraRetries() int
}

type retryHint interface {
	RetryDelay() time.Duration
}

func maxExtraRetries(defaultRetries int, err error) int {
	defaultRetries = max(defaultRetries, 0)
	var capErr retryCap
	if errors.As(err, &capErr) {
		return min(max(capErr.MaxExtraRetries(), 0), defaultRetries)
	}
	return defaultRetries
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return isTransient(err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *core.TransientError
	var lte *core.LimitedTransientError
	if errors.As(err, &te) || errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func backoffSleep(initial, maxSleep time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < maxSleep; i++ {
		sleep = min(sleep*2, maxSleep)
	}
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
