package enrich_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shpitdev/leadfinder/internal/core"
	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/enrich/gemini"
	"github.com/shpitdev/leadfinder/internal/exa"
)

type fakeExa struct {
	mu       sync.Mutex
	contents map[string]exa.Result
	search   map[string]exa.Result
	errFor   map[string]error
	queries  []string
}

func (f *fakeExa) Contents(_ context.Context, urls []string, _ exa.ContentsOptions) (*exa.ContentsResponse, error) {
	if err := f.errFor[urls[0]]; err != nil {
		return nil, err
	}
	resp := &exa.ContentsResponse{}
	if r, ok := f.contents[urls[0]]; ok {
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

func (f *fakeExa) Search(_ context.Context, req exa.SearchRequest) (*exa.SearchResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()
	if err := f.errFor[req.Query]; err != nil {
		return nil, err
	}
	resp := &exa.SearchResponse{}
	if r, ok := f.search[req.Query]; ok {
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

type fakePages map[string]*enrich.Page

func (f fakePages) Fetch(_ context.Context, url string) (*enrich.Page, error) {
	if p, ok := f[url]; ok {
		return p, nil
	}
	return nil, errors.New("404 not found")
}

type fakeInsights struct {
	err error
}

func (f fakeInsights) Generate(_ context.Context, in gemini.Input) (gemini.Insights, error) {
	if f.err != nil {
		return gemini.Insights{}, f.err
	}
	return gemini.Insights{Summary: in.Name + " is a dental practice.", Industry: "Healthcare"}, nil
}

func (fakeInsights) Model() string { return "gemini-test" }

func newEnricher(t *testing.T, cfg enrich.Config) *enrich.ExaEnricher {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	e, err := enrich.New(cfg)
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	return e
}

func TestEnrich_ExaContents(t *testing.T) {
	t.Parallel()

	fx := &fakeExa{contents: map[string]exa.Result{
		"https://smiledental.com": {Text: "Email hello@smiledental.com or call (512) 555-0100", Summary: "Family dentist"},
	}}
	e := newEnricher(t, enrich.Config{Exa: fx})

	got, err := e.Enrich(context.Background(), enrich.Record{ID: "1", Name: "Smile Dental", URL: "https://smiledental.com"}, enrich.AllTypes)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	want := enrich.Result{
		Record:   enrich.Record{ID: "1", Name: "Smile Dental", URL: "https://smiledental.com", Summary: "Family dentist"},
		Email:    "hello@smiledental.com",
		Phone:    "5125550100",
		Emails:   []string{"hello@smiledental.com"},
		Phones:   []string{"5125550100"},
		Insights: "Family dentist",
		Types:    []enrich.Type{enrich.TypeEmail, enrich.TypePhone, enrich.TypeInsights},
		Source:   enrich.SourceExaContents,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result (-want +got):\n%s", diff)
	}
	if len(fx.queries) != 0 {
		t.Fatalf("search fallback should not run, got %v", fx.queries)
	}
}

func TestEnrich_WebsiteFillsMissingContacts(t *testing.T) {
	t.Parallel()

	fx := &fakeExa{contents: map[string]exa.Result{
		"https://oaklegal.com": {Text: "Trusted attorneys since 1990.", Summary: "Law firm"},
	}}
	pages := fakePages{"https://oaklegal.com": {MailTo: []string{"intake@oaklegal.com"}, Tel: []string{"+1 512 555 0199"}}}
	e := newEnricher(t, enrich.Config{Exa: fx, Pages: pages})

	got, err := e.Enrich(context.Background(), enrich.Record{Name: "Oak Legal", URL: "https://oaklegal.com"}, []enrich.Type{enrich.TypeEmail, enrich.TypePhone})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Email != "intake@oaklegal.com" || got.Phone != "+15125550199" {
		t.Fatalf("unexpected contacts: %+v", got)
	}
	if got.Source != enrich.SourceExaContents || got.Insights != "" {
		t.Fatalf("unexpected source/insights: %+v", got)
	}
}

func TestEnrich_SearchFallbackAndInsights(t *testing.T) {
	t.Parallel()

	query := "Bright Teeth contact information email phone"
	fx := &fakeExa{search: map[string]exa.Result{
		query: {URL: "https://brightteeth.com/contact", Text: "Reach us at office@brightteeth.com", Summary: "Cosmetic dentistry"},
	}}
	e := newEnricher(t, enrich.Config{Exa: fx, Insights: fakeInsights{}})

	got, err := e.Enrich(context.Background(), enrich.Record{ID: "7", Name: "Bright Teeth"}, nil)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Source != enrich.SourceSearch || got.URL != "https://brightteeth.com/contact" {
		t.Fatalf("expected search fallback, got %+v", got)
	}
	if got.Email != "office@brightteeth.com" || got.Phone != "" {
		t.Fatalf("unexpected contacts: %+v", got)
	}
	if got.Insights != "Bright Teeth is a dental practice. Industry: Healthcare." || got.Model != "gemini-test" {
		t.Fatalf("unexpected insights: %q model=%q", got.Insights, got.Model)
	}
	if !got.Successful() {
		t.Fatal("expected successful result")
	}
}

func TestEnrich_InsightsFailureFallsBackToSummary(t *testing.T) {
	t.Parallel()

	fx := &fakeExa{contents: map[string]exa.Result{"https://a.com": {Text: "x", Summary: "Anvil maker"}}}
	e := newEnricher(t, enrich.Config{Exa: fx, Insights: fakeInsights{err: errors.New("quota")}})

	got, err := e.Enrich(context.Background(), enrich.Record{Name: "Acme", URL: "https://a.com"}, []enrich.Type{enrich.TypeInsights})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Insights != "Anvil maker" || got.Model != "" {
		t.Fatalf("unexpected insights: %+v", got)
	}
	if got.Successful() {
		t.Fatal("insights alone do not make a successful enrichment")
	}
}

func TestEnrich_NothingFound(t *testing.T) {
	t.Parallel()

	e := newEnricher(t, enrich.Config{Exa: &fakeExa{}})
	rec := enrich.Record{ID: "9", Name: "Ghost Co"}
	got, err := e.Enrich(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Record != rec || got.Source != enrich.SourceNone || len(got.Types) != 0 {
		t.Fatalf("expected unenriched record, got %+v", got)
	}
}

func TestEnrich_AllSourcesFailIsTransient(t *testing.T) {
	t.Parallel()

	fx := &fakeExa{errFor: map[string]error{
		"https://down.com": &core.TransientError{Err: errors.New("exa 503")},
	}}
	e := newEnricher(t, enrich.Config{Exa: fx})
	_, err := e.Enrich(context.Background(), enrich.Record{URL: "https://down.com"}, nil)
	var te *core.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

type flakyEnricher struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *flakyEnricher) Enrich(_ context.Context, rec enrich.Record, _ []enrich.Type) (enrich.Result, error) {
	f.mu.Lock()
	f.calls[rec.ID]++
	n := f.calls[rec.ID]
	f.mu.Unlock()
	switch rec.ID {
	case "flaky":
		if n == 1 {
			return enrich.Result{}, &core.TransientError{Err: errors.New("429")}
		}
		return enrich.Result{Record: rec, Phone: "5125550100"}, nil
	case "broken":
		return enrich.Result{}, errors.New("permanent")
	default:
		return enrich.Result{Record: rec}, nil
	}
}

func TestEnrichAll_RetriesAndSummarizes(t *testing.T) {
	t.Parallel()

	inner := &flakyEnricher{calls: map[string]int{}}
	traced := enrich.NewTraced(inner, zerolog.Nop(), 0)
	recs := []enrich.Record{{ID: "flaky", Name: "Flaky"}, {ID: "broken", Name: "Broken"}, {ID: "empty", Name: "Empty"}}

	var seen int
	outcomes, err := enrich.EnrichAll(context.Background(), recs, nil, traced, enrich.Options{Workers: 2, MaxRetries: 2}, func(enrich.Outcome) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("enrich all: %v", err)
	}
	if seen != 3 {
		t.Fatalf("expected 3 callbacks, got %d", seen)
	}
	if outcomes[0].Err != nil || outcomes[0].Phone == "" {
		t.Fatalf("flaky record should succeed after retry: %+v", outcomes[0])
	}
	if outcomes[1].Err == nil || outcomes[1].Name != "Broken" {
		t.Fatalf("broken record should carry its error and input: %+v", outcomes[1])
	}
	if got := enrich.Summarize(outcomes); got != (enrich.Summary{Total: 3, Successful: 1, Failed: 2}) {
		t.Fatalf("unexpected summary %+v", got)
	}
	if inner.calls["flaky"] != 2 || inner.calls["broken"] != 1 {
		t.Fatalf("unexpected call counts %v", inner.calls)
	}
}
