package leads_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/core"
	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/leads"
)

var fixedNow = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	mu       sync.Mutex
	requests []exa.SearchRequest
	failures int
	resp     *exa.SearchResponse
}

func (f *fakeSearcher) Search(_ context.Context, req exa.SearchRequest) (*exa.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return nil, &core.TransientError{Err: errors.New("exa 503")}
	}
	return f.resp, nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newFinder(s leads.Searcher) *leads.Finder {
	ex := contact.NewExtractor(contact.DefaultTables(), contact.SeededRand(7))
	return leads.NewFinder(s, ex, leads.Options{
		Workers:    4,
		MaxRetries: 2,
		Now:        func() time.Time { return fixedNow },
		NewID:      sequentialIDs(),
	})
}

func TestBuildSearchRequest_Defaults(t *testing.T) {
	t.Parallel()

	got := leads.BuildSearchRequest(leads.Request{Query: "  dentists in Austin ", ExcludeDomains: []string{"yelp.com"}}, fixedNow)
	want := exa.SearchRequest{
		Query:          "dentists in Austin",
		NumResults:     leads.DefaultNumResults,
		Type:           "neural",
		UseAutoprompt:  true,
		ExcludeDomains: append([]string{"yelp.com"}, leads.SocialDomains...),
		StartCrawlDate: "2023-01-01",
		EndCrawlDate:   "2026-05-02",
		Contents:       &exa.ContentsOptions{Text: true, Highlights: true, Summary: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSearchRequest_CapsResults(t *testing.T) {
	t.Parallel()

	got := leads.BuildSearchRequest(leads.Request{Query: "q", NumResults: 500, DisableAutoprompt: true, Type: "keyword"}, fixedNow)
	if got.NumResults != leads.MaxNumResults || got.UseAutoprompt || got.Type != "keyword" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestFind_ExtractsValidatesAndStamps(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{
		failures: 1,
		resp: &exa.SearchResponse{
			RequestID:        "req-9",
			AutopromptString: "Here is a dentist in Austin:",
			Results: []exa.Result{
				{Title: "Smile Dental - Austin's Family Dentist", URL: "https://www.smiledental.com/", Text: "Call (512) 555-0100 or email frontdesk@smiledental.com"},
				{Title: "404 Page Not Found", URL: "https://gone.example/x", Text: "call 512-555-0101"},
				{Title: "Oak Street Orthodontics", URL: "", Text: "no contact details here"},
				{Title: "Bright Teeth Clinic | Home", URL: "https://brightteeth.com", Text: "Bright Teeth Clinic is a licensed dentist."},
			},
		},
	}
	f := newFinder(s)

	report, err := f.Find(context.Background(), leads.Request{Query: "dentists in Austin", NumResults: 5})
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if len(s.requests) != 2 {
		t.Fatalf("expected the transient search failure to be retried once, got %d calls", len(s.requests))
	}
	if report.TotalFound != 4 || report.TotalReturned != 2 {
		t.Fatalf("unexpected totals: found=%d returned=%d", report.TotalFound, report.TotalReturned)
	}
	wantRejected := map[contact.RejectReason]int{
		contact.RejectDenylistedName:  1,
		contact.RejectNoContactMethod: 1,
	}
	if diff := cmp.Diff(wantRejected, report.Rejected); diff != "" {
		t.Fatalf("rejections (-want +got):\n%s", diff)
	}
	if report.RequestID != "req-9" || report.AutopromptString == "" {
		t.Fatalf("missing search metadata: %+v", report)
	}

	names := []string{}
	for _, c := range report.Contacts {
		names = append(names, c.Name)
		if c.CreatedAt != fixedNow || c.SearchQuery != "dentists in Austin" || c.Source != contact.SourceExa {
			t.Fatalf("provenance not stamped: %+v", c)
		}
	}
	if !slices.Equal(names, []string{"Smile Dental", "Bright Teeth Clinic"}) {
		t.Fatalf("unexpected names: %v", names)
	}
	if report.Contacts[0].ID == "" || report.Contacts[0].ID == report.Contacts[1].ID {
		t.Fatalf("ids must be unique and non-empty: %q %q", report.Contacts[0].ID, report.Contacts[1].ID)
	}
	if report.Contacts[0].Email != "frontdesk@smiledental.com" || report.Contacts[0].Phone != "(512) 555-0100" {
		t.Fatalf("unexpected extraction: %+v", report.Contacts[0])
	}
	if !report.Contacts[1].EmailGenerated {
		t.Fatalf("expected generated email for %+v", report.Contacts[1])
	}
}

func TestFind_TruncatesToNumResults(t *testing.T) {
	t.Parallel()

	results := make([]exa.Result, 0, 6)
	for i := range 6 {
		results = append(results, exa.Result{
			Title: fmt.Sprintf("Business Number %d", i),
			URL:   fmt.Sprintf("https://biz%d.example.com", i),
		})
	}
	f := newFinder(&fakeSearcher{resp: &exa.SearchResponse{Results: results}})

	report, err := f.Find(context.Background(), leads.Request{Query: "shops", NumResults: 3})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if report.TotalFound != 6 || report.TotalReturned != 3 {
		t.Fatalf("unexpected totals: %+v", report)
	}
	if report.Contacts[0].Name != "Business Number 0" || report.Contacts[2].Name != "Business Number 2" {
		t.Fatalf("expected rank order to be preserved, got %v", report.Contacts)
	}
}

func TestFind_Errors(t *testing.T) {
	t.Parallel()

	f := newFinder(&fakeSearcher{resp: &exa.SearchResponse{}})
	if _, err := f.Find(context.Background(), leads.Request{Query: " "}); err == nil {
		t.Fatal("expected empty query error")
	}

	failing := &fakeSearcher{failures: 10}
	if _, err := newFinder(failing).Find(context.Background(), leads.Request{Query: "q"}); err == nil {
		t.Fatal("expected search error after retries are exhausted")
	}
	if len(failing.requests) != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", len(failing.requests))
	}

	report, err := f.Find(context.Background(), leads.Request{Query: "nothing"})
	if err != nil {
		t.Fatalf("empty result set should not fail: %v", err)
	}
	if report.TotalFound != 0 || len(report.Contacts) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
