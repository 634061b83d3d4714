package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/shpitdev/leadfinder/internal/ghl"
	"github.com/shpitdev/leadfinder/internal/pipeline"
	"github.com/shpitdev/leadfinder/internal/usage"
)

type ImportParams struct {
	Account  Account
	ListName string
}

type ImportDeps struct {
	Importer Importer
	// Store, when set, keeps the import in the account's import history.
	Store  *usage.Store
	Logger zerolog.Logger
}

// RunImport reads a contacts CSV (as written by a search) and imports the contactable rows
// into the smart list p.ListName.
func RunImport(ctx context.Context, r io.Reader, p ImportParams, d ImportDeps) (*ghl.ImportSummary, error) {
	if d.Importer == nil {
		return nil, fmt.Errorf("import: CRM importer is required")
	}
	if d.Store != nil {
		if err := p.Account.validate(); err != nil {
			return nil, err
		}
	}
	log := d.Logger
	contacts, err := pipeline.ReadContactsCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	contactable, dropped := pipeline.FilterContactable(contacts)
	log.Info().
		Int("read", len(contacts)).
		Int("contactable", len(contactable)).
		Int("dropped", dropped).
		Str("list", p.ListName).
		Msg("import start")

	summary, err := d.Importer.Import(ctx, p.ListName, contactable)
	if summary == nil {
		return nil, err
	}
	log.Info().
		Int("successful", summary.Successful).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("import done")
	if d.Store != nil {
		if _, histErr := recordImport(ctx, d.Store, p.Account, "", "", summary); histErr != nil {
			log.Warn().Err(histErr).Msg("import history not saved")
		}
	}
	return summary, err
}

// recordImport keeps a summary in the import history even when ctx was cancelled mid-import.
func recordImport(ctx context.Context, store *usage.Store, a Account, searchID, query string, s *ghl.ImportSummary) (usage.ImportEntry, error) {
	return store.RecordImport(context.WithoutCancel(ctx), usage.ImportRecord{
		Identifier: a.id(),
		LocationID: a.LocationID,
		SearchID:   searchID,
		Query:      query,
		ListName:   s.ListName,
		Total:      s.Total,
		Successful: s.Successful,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
	})
}
