//go:build live_e2e

package app_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/leadfinder/internal/app"
	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/enrich/gemini"
	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/leads"
	"github.com/shpitdev/leadfinder/internal/pipeline"
	"github.com/shpitdev/leadfinder/internal/usage"
)

// Runs a real search and enriches its output. Needs EXA_API_KEY; GEMINI_API_KEY adds insights.
func TestLive_SearchThenEnrich(t *testing.T) {
	apiKey := os.Getenv("EXA_API_KEY")
	if apiKey == "" {
		t.Fatalf("EXA_API_KEY is required for live_e2e tests")
	}
	ctx := context.Background()
	log := zerolog.New(zerolog.NewTestWriter(t))

	baseDir := t.TempDir()
	if artifactDir := os.Getenv("LIVE_E2E_ARTIFACT_DIR"); artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0o755); err != nil {
			t.Fatalf("create LIVE_E2E_ARTIFACT_DIR: %v", err)
		}
		baseDir = artifactDir
	}

	client, err := exa.New(exa.Config{APIKey: apiKey, BaseURL: os.Getenv("EXA_BASE_URL"), Timeout: time.Minute})
	if err != nil {
		t.Fatalf("new exa client: %v", err)
	}
	store, err := usage.NewStore(usage.Config{DBPath: filepath.Join(baseDir, "usage.db")})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var searchOut bytes.Buffer
	res, err := app.RunSearch(ctx, &searchOut, app.SearchParams{
		Account: account,
		Request: leads.Request{Query: "family dentists in Austin TX", NumResults: 5},
		Format:  app.FormatCSV,
	}, app.SearchDeps{
		Finder: leads.NewFinder(client, contact.NewExtractor(contact.DefaultTables(), nil), leads.Options{Workers: 2, MaxRetries: 2, Logger: log}),
		Store:  store,
		Logger: log,
	})
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}
	if res.Report.TotalReturned == 0 {
		t.Fatalf("search returned no contacts (found %d results)", res.Report.TotalFound)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "search.csv"), searchOut.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := enrich.Config{
		Exa:    client,
		Pages:  enrich.NewPageFetcher(&http.Client{Timeout: 30 * time.Second}),
		Logger: log,
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			model = "gemini-2.5-flash"
		}
		gen, err := gemini.New(ctx, gemini.Config{APIKey: key, Model: model, BaseURL: os.Getenv("GEMINI_BASE_URL")})
		if err != nil {
			t.Fatalf("new gemini generator: %v", err)
		}
		cfg.Insights = gen
	}
	en, err := enrich.New(cfg)
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	if _, err := store.ChangePlan(ctx, account.LocationID, usage.PlanStarter, ""); err != nil {
		t.Fatal(err)
	}

	var enrichOut bytes.Buffer
	out, err := app.RunEnrich(ctx, bytes.NewReader(searchOut.Bytes()), &enrichOut, app.EnrichParams{
		Account: account,
		Options: enrich.Options{Workers: 2, MaxRetries: 2, RequestTimeout: time.Minute},
	}, store, en, log)
	if err != nil {
		t.Fatalf("RunEnrich: %v", err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "enriched.csv"), enrichOut.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := pipeline.ReadCSV(&enrichOut)
	if err != nil {
		t.Fatalf("read enriched csv: %v", err)
	}
	if len(rows) != res.Report.TotalReturned {
		t.Fatalf("got %d enriched rows for %d search contacts", len(rows), res.Report.TotalReturned)
	}
	for i, r := range rows {
		if r.Status == pipeline.StatusOK && r.Email == "" && r.Phone == "" && !strings.Contains(r.Types, "insights") {
			t.Fatalf("row %d marked ok without any detail: %+v", i, r)
		}
	}
	if out.Summary.Successful > 0 && out.Usage == nil {
		t.Fatalf("successful contacts were not billed: %+v", out.Summary)
	}
}
