package enrich

import (
	"context"
	"time"

	"github.com/shpitdev/leadfinder/internal/worker"
)

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	FailFast       bool
}

// Outcome is one record's final result after retries. Err is set when enrichment failed; the
// Result still carries the original record.
type Outcome struct {
	Result
	Err error
}

// Summary counts outcomes. Successful results have an email or phone.
type Summary struct {
	Total      int
	Successful int
	Failed     int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Err == nil && o.Successful() {
			s.Successful++
		}
	}
	s.Failed = s.Total - s.Successful
	return s
}

// EnrichAll enriches recs concurrently. onResult, when non-nil, sees outcomes in completion
// order; returning an error from it stops the run. The returned slice is in input order.
func EnrichAll(ctx context.Context, recs []Record, types []Type, en Enricher, opts Options, onResult func(Outcome) error) ([]Outcome, error) {
	policy := worker.FailurePolicyPartialOutput
	if opts.FailFast {
		policy = worker.FailurePolicyFailFast
	}
	process := func(ctx context.Context, rec Record) (Result, error) {
		return en.Enrich(ctx, rec, types)
	}
	var cb func(worker.Result[Record, Result]) error
	if onResult != nil {
		cb = func(r worker.Result[Record, Result]) error {
			return onResult(toOutcome(r))
		}
	}
	results, err := worker.ProcessAllWithCallback(ctx, recs, process, cb, worker.Options{
		Workers:           opts.Workers,
		MaxRetries:        opts.MaxRetries,
		RequestTimeout:    opts.RequestTimeout,
		RateLimitRPS:      opts.RateLimitRPS,
		FailurePolicy:     policy,
		BackoffJitterFrac: 0.2,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Outcome, 0, len(results))
	for _, r := range results {
		out = append(out, toOutcome(r))
	}
	return out, nil
}

func toOutcome(r worker.Result[Record, Result]) Outcome {
	res := r.Output
	if r.Err != nil || res.Record == (Record{}) {
		res.Record = r.Input
	}
	return Outcome{Result: res, Err: r.Err}
}
