package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/pipeline"
	"github.com/shpitdev/leadfinder/internal/usage"
)

type EnrichParams struct {
	Account Account
	// Types defaults to enrich.AllTypes.
	Types    []enrich.Type
	Options  enrich.Options
	SearchID string
	// Previous is an earlier output CSV of the same input. Rows with status ok are reused
	// without calling the enricher or billing again.
	Previous io.Reader
}

// EnrichOutcome is everything one enrichment run produced.
type EnrichOutcome struct {
	Quote   usage.Quote
	Summary enrich.Summary
	Cached  int
	Rows    []pipeline.Row
	Usage   *usage.EnrichmentUsage
}

// RunEnrich enriches the records in in and writes one row per record to out, in input order.
//
// Only records not already enriched in Previous are sent to en. The account must be allowed to
// enrich and able to afford that many contacts; successful contacts are billed afterwards.
func RunEnrich(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	p EnrichParams,
	store *usage.Store,
	en enrich.Enricher,
	log zerolog.Logger,
) (*EnrichOutcome, error) {
	if err := p.Account.validate(); err != nil {
		return nil, err
	}
	if store == nil || en == nil {
		return nil, errors.New("enrich: usage store and enricher are required")
	}
	types := p.Types
	if len(types) == 0 {
		types = enrich.AllTypes
	}
	log = log.With().Str("account", p.Account.id()).Logger()
	runStart := time.Now()

	recs, err := pipeline.ReadRecordsCSV(in)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(recs) == 0 {
		return nil, errors.New("enrich: input has no records")
	}
	previous, err := readPreviousRows(p.Previous)
	if err != nil {
		return nil, err
	}
	plan := buildIncrementalPlan(recs, previous)
	log.Info().
		Int("records", len(recs)).
		Int("cached", plan.cachedRows).
		Int("pending", len(plan.pending)).
		Interface("types", types).
		Int("workers", p.Options.Workers).
		Int("maxRetries", p.Options.MaxRetries).
		Dur("timeout", p.Options.RequestTimeout).
		Float64("rateLimitRPS", p.Options.RateLimitRPS).
		Bool("failFast", p.Options.FailFast).
		Msg("enrich start")

	res := &EnrichOutcome{Cached: plan.cachedRows}
	if len(plan.pending) > 0 {
		if err := checkEnrichAllowed(ctx, store, p.Account.id(), len(plan.pending), res); err != nil {
			return res, err
		}
		log.Info().
			Float64("costPerContact", res.Quote.CostPerContact).
			Float64("totalCost", res.Quote.TotalCost).
			Msg("enrichment quote")

		done := 0
		outcomes, err := enrich.EnrichAll(ctx, plan.pending, types,
			enrich.NewTraced(en, log, p.Options.RequestTimeout), p.Options,
			func(o enrich.Outcome) error {
				done++
				log.Debug().Int("done", done).Int("total", len(plan.pending)).Str("name", o.Name).Msg("enrich progress")
				return nil
			})
		if err != nil {
			return res, err
		}
		if err := plan.applyEnrichedRows(pipeline.RowsFromOutcomes(outcomes)); err != nil {
			return res, err
		}
		res.Summary = enrich.Summarize(outcomes)
	}
	res.Rows = plan.rows

	if err := pipeline.WriteCSV(out, plan.rows); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}

	if res.Summary.Successful > 0 {
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		u, err := store.RecordEnrichment(context.WithoutCancel(ctx), usage.EnrichmentRecord{
			Identifier:       p.Account.id(),
			LocationID:       p.Account.LocationID,
			SearchID:         p.SearchID,
			ContactsEnriched: res.Summary.Successful,
			Types:            names,
		})
		if err != nil {
			return res, err
		}
		res.Usage = &u
	}

	okRows, otherRows := countStatuses(plan.rows)
	log.Info().
		Int("ok", okRows).
		Int("notOk", otherRows).
		Int("enriched", res.Summary.Successful).
		Dur("elapsed", time.Since(runStart).Round(time.Millisecond)).
		Msg("enrich done")
	return res, nil
}

func checkEnrichAllowed(ctx context.Context, store *usage.Store, id string, n int, res *EnrichOutcome) error {
	el, err := store.CanEnrich(ctx, id)
	if err != nil {
		return err
	}
	if !el.CanEnrich {
		return fmt.Errorf("%w: %s", ErrEnrichmentNotAllowed, el.Reason)
	}
	q, err := store.EnrichmentQuote(ctx, id, n)
	if err != nil {
		return err
	}
	res.Quote = q
	if !q.CanAfford {
		if q.Limits != nil {
			return fmt.Errorf("%w: %d contacts requested but only %d of %d remain this period",
				ErrEnrichmentNotAllowed, n, q.Limits.ContactLimit-q.Limits.ContactsUsed, q.Limits.ContactLimit)
		}
		return fmt.Errorf("%w: plan cannot cover %d contacts", ErrEnrichmentNotAllowed, n)
	}
	return nil
}

func readPreviousRows(r io.Reader) (map[string]pipeline.Row, error) {
	out := map[string]pipeline.Row{}
	if r == nil {
		return out, nil
	}
	rows, err := pipeline.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse previous output csv: %w", err)
	}
	for _, row := range rows {
		out[row.Key()] = row
	}
	return out, nil
}

type incrementalPlan struct {
	rows       []pipeline.Row
	pending    []enrich.Record
	pendingIdx map[string][]int
	cachedRows int
}

func buildIncrementalPlan(recs []enrich.Record, previous map[string]pipeline.Row) incrementalPlan {
	plan := incrementalPlan{
		rows:       make([]pipeline.Row, len(recs)),
		pendingIdx: make(map[string][]int),
	}
	for i, rec := range recs {
		key := pipeline.RecordKey(rec.ID, rec.Name, rec.URL)
		if prev, ok := previous[key]; ok && prev.Status == pipeline.StatusOK {
			plan.rows[i] = prev
			plan.cachedRows++
			continue
		}
		if _, seen := plan.pendingIdx[key]; !seen {
			plan.pending = append(plan.pending, rec)
		}
		plan.pendingIdx[key] = append(plan.pendingIdx[key], i)
	}
	return plan
}

func (p *incrementalPlan) applyEnrichedRows(rows []pipeline.Row) error {
	if len(rows) != len(p.pending) {
		return fmt.Errorf("incremental enrichment mismatch: got %d rows for %d pending records", len(rows), len(p.pending))
	}
	for i, rec := range p.pending {
		idxs := p.pendingIdx[pipeline.RecordKey(rec.ID, rec.Name, rec.URL)]
		if len(idxs) == 0 {
			return fmt.Errorf("incremental enrichment mismatch: no pending index for %q", rec.Name)
		}
		for _, idx := range idxs {
			p.rows[idx] = rows[i]
		}
	}
	return nil
}

func countStatuses(rows []pipeline.Row) (okRows int, otherRows int) {
	for _, row := range rows {
		if row.Status == pipeline.StatusOK {
			okRows++
			continue
		}
		otherRows++
	}
	return okRows, otherRows
}
