package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/ghl"
	"github.com/shpitdev/leadfinder/internal/leads"
	"github.com/shpitdev/leadfinder/internal/pipeline"
	"github.com/shpitdev/leadfinder/internal/usage"
)

// OutputFormat selects how search results are written.
type OutputFormat string

const (
	FormatCSV  OutputFormat = "csv"
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "csv" (the default for "") or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv or json)", s)
	}
}

// Finder is the lead search the run drives.
type Finder interface {
	Find(ctx context.Context, req leads.Request) (*leads.Report, error)
}

// Importer pushes contacts into the CRM.
type Importer interface {
	Import(ctx context.Context, listName string, contacts []contact.Contact) (*ghl.ImportSummary, error)
}

type SearchParams struct {
	Account Account
	Request leads.Request
	Format  OutputFormat
	// ImportList, when set, imports the contactable results into this smart list.
	ImportList string
}

type SearchDeps struct {
	Finder   Finder
	Store    *usage.Store
	Importer Importer
	Logger   zerolog.Logger
}

// SearchOutcome is everything one search run produced.
type SearchOutcome struct {
	Allowance usage.SearchAllowance
	Report    *leads.Report
	Import    *ghl.ImportSummary
	Usage     usage.SearchUsage
}

// RunSearch checks the account's search allowance, runs the search, writes the contacts to w,
// optionally imports them, and records the search along with any import. A failed import is
// still recorded with the contacts that made it in.
func RunSearch(ctx context.Context, w io.Writer, p SearchParams, d SearchDeps) (*SearchOutcome, error) {
	if err := p.Account.validate(); err != nil {
		return nil, err
	}
	if d.Finder == nil || d.Store == nil {
		return nil, fmt.Errorf("search: finder and usage store are required")
	}
	if p.ImportList != "" && d.Importer == nil {
		return nil, fmt.Errorf("search: import requested without a CRM importer")
	}
	log := d.Logger.With().Str("account", p.Account.id()).Logger()
	runStart := time.Now()

	if _, err := d.Store.EnsureSubscription(ctx, p.Account.id(), p.Account.LocationID); err != nil {
		return nil, err
	}
	allowance, err := d.Store.CheckSearchLimit(ctx, p.Account.id())
	if err != nil {
		return nil, err
	}
	out := &SearchOutcome{Allowance: allowance}
	if !allowance.CanSearch {
		return out, searchDenied(allowance)
	}
	log.Info().
		Str("plan", allowance.Subscription.PlanID).
		Int("remaining", allowance.RemainingSearches).
		Str("query", p.Request.Query).
		Msg("search start")

	report, err := d.Finder.Find(ctx, p.Request)
	if err != nil {
		return out, err
	}
	out.Report = report
	log.Info().
		Int("found", report.TotalFound).
		Int("returned", report.TotalReturned).
		Int("failed", report.Failed).
		Interface("rejected", report.Rejected).
		Dur("elapsed", time.Since(runStart).Round(time.Millisecond)).
		Msg("search done")

	if err := writeReport(w, p.Format, report); err != nil {
		return out, fmt.Errorf("write results: %w", err)
	}

	var importErr error
	imported := 0
	if p.ImportList != "" {
		contactable, dropped := pipeline.FilterContactable(report.Contacts)
		if dropped > 0 {
			log.Info().Int("dropped", dropped).Msg("skipping contacts without email or phone")
		}
		out.Import, importErr = d.Importer.Import(ctx, p.ImportList, contactable)
		if out.Import != nil {
			imported = out.Import.Successful
		}
	}

	// The search counts even when ctx was cancelled during the import.
	rec, err := d.Store.RecordSearch(context.WithoutCancel(ctx), usage.SearchRecord{
		Identifier:       p.Account.id(),
		LocationID:       p.Account.LocationID,
		Query:            p.Request.Query,
		ContactsFound:    report.TotalReturned,
		ContactsImported: imported,
	})
	if err != nil {
		return out, err
	}
	out.Usage = rec
	if out.Import != nil {
		if _, err := recordImport(ctx, d.Store, p.Account, rec.SearchID, p.Request.Query, out.Import); err != nil {
			log.Warn().Err(err).Msg("import history not saved")
		}
	}
	if importErr != nil {
		return out, fmt.Errorf("import: %w", importErr)
	}
	return out, nil
}

func writeReport(w io.Writer, format OutputFormat, report *leads.Report) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return pipeline.WriteContactsCSV(w, report.Contacts)
}
