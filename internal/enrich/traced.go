package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shpitdev/leadfinder/internal/worker"
)

// Traced wraps an Enricher and logs every attempt, including the ones the worker pool retries.
type Traced struct {
	next           Enricher
	log            zerolog.Logger
	requestTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

func NewTraced(next Enricher, log zerolog.Logger, requestTimeout time.Duration) *Traced {
	return &Traced{
		next:           next,
		log:            log,
		requestTimeout: requestTimeout,
		attempts:       make(map[string]int),
	}
}

func (t *Traced) Enrich(ctx context.Context, rec Record, types []Type) (Result, error) {
	key := strings.TrimSpace(rec.ID)
	if key == "" {
		key = strings.TrimSpace(rec.Name)
	}
	attempt := t.nextAttempt(key)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.log.Debug().
		Str("id", rec.ID).
		Str("name", rec.Name).
		Str("url", rec.URL).
		Int("attempt", attempt).
		Dur("timeout", t.requestTimeout).
		Str("deadline_in", deadlineIn).
		Msg("enrich request")

	start := time.Now()
	out, err := t.next.Enrich(ctx, rec, types)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		t.log.Warn().
			Err(err).
			Str("id", rec.ID).
			Int("attempt", attempt).
			Dur("duration", elapsed).
			Bool("retryable", worker.IsTransient(err)).
			Msg("enrich response")
		return out, err
	}

	t.log.Debug().
		Str("id", rec.ID).
		Int("attempt", attempt).
		Dur("duration", elapsed).
		Str("source", string(out.Source)).
		Bool("email", out.Email != "").
		Bool("phone", out.Phone != "").
		Bool("insights", out.Insights != "").
		Msg("enrich response")
	return out, nil
}

func (t *Traced) nextAttempt(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}
