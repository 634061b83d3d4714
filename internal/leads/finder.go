// Package leads runs a search and turns every result into a validated contact.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/worker"
)

const (
	DefaultNumResults = 20
	MaxNumResults     = 50
	DefaultSearchType = "neural"
	DefaultCrawlStart = "2023-01-01"
)

// SocialDomains are always excluded: their pages are profiles, not business sites.
var SocialDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"tiktok.com",
	"youtube.com",
	"linkedin.com/in/",
	"reddit.com",
}

// Searcher is the search provider the finder queries.
type Searcher interface {
	Search(ctx context.Context, req exa.SearchRequest) (*exa.SearchResponse, error)
}

// Request is a lead search. Zero values take the documented defaults.
type Request struct {
	Query             string
	NumResults        int
	Type              string
	DisableAutoprompt bool
	IncludeDomains    []string
	ExcludeDomains    []string
	StartCrawlDate    string
	EndCrawlDate      string
}

// Report is the outcome of one Find. TotalFound counts results the provider returned;
// TotalReturned counts accepted contacts.
type Report struct {
	Query            string                       `json:"query"`
	TotalFound       int                          `json:"totalFound"`
	TotalReturned    int                          `json:"totalReturned"`
	Contacts         []contact.Contact            `json:"contacts"`
	Rejected         map[contact.RejectReason]int `json:"rejected,omitempty"`
	Failed           int                          `json:"failed,omitempty"`
	RequestID        string                       `json:"exaRequestId,omitempty"`
	AutopromptString string                       `json:"autopromptString,omitempty"`
	SearchTime       time.Time                    `json:"searchTime"`
}

type Options struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration

	Now    func() time.Time
	NewID  func() string
	Logger zerolog.Logger
}

// Finder is safe for concurrent use when its Searcher and Extractor are.
type Finder struct {
	search    Searcher
	extractor *contact.Extractor
	opts      Options
}

func NewFinder(s Searcher, ex *contact.Extractor, opts Options) *Finder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if ex == nil {
		ex = contact.NewExtractor(contact.DefaultTables(), nil)
	}
	return &Finder{search: s, extractor: ex, opts: opts}
}

// BuildSearchRequest applies defaults, caps NumResults, and appends the social-domain excludes.
func BuildSearchRequest(req Request, now time.Time) exa.SearchRequest {
	n := req.NumResults
	if n <= 0 {
		n = DefaultNumResults
	}
	if n > MaxNumResults {
		n = MaxNumResults
	}
	typ := strings.TrimSpace(req.Type)
	if typ == "" {
		typ = DefaultSearchType
	}
	start := strings.TrimSpace(req.StartCrawlDate)
	if start == "" {
		start = DefaultCrawlStart
	}
	end := strings.TrimSpace(req.EndCrawlDate)
	if end == "" {
		end = now.UTC().Format(time.DateOnly)
	}
	exclude := make([]string, 0, len(req.ExcludeDomains)+len(SocialDomains))
	exclude = append(exclude, req.ExcludeDomains...)
	exclude = append(exclude, SocialDomains...)

	return exa.SearchRequest{
		Query:          strings.TrimSpace(req.Query),
		NumResults:     n,
		Type:           typ,
		UseAutoprompt:  !req.DisableAutoprompt,
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: exclude,
		StartCrawlDate: start,
		EndCrawlDate:   end,
		Contents:       &exa.ContentsOptions{Text: true, Highlights: true, Summary: true},
	}
}

// Find searches and extracts. A failing or panicking extraction is logged and counted in
// Report.Failed; it never aborts the batch. Only the search call itself can fail Find.
func (f *Finder) Find(ctx context.Context, req Request) (*Report, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("search query is required")
	}
	if f.search == nil {
		return nil, errors.New("no search provider configured")
	}
	log := f.opts.Logger.With().Str("query", strings.TrimSpace(req.Query)).Logger()

	sreq := BuildSearchRequest(req, f.opts.Now())
	resp, err := f.searchWithRetry(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	log.Info().Int("results", len(resp.Results)).Str("request_id", resp.RequestID).Msg("search returned")

	results := make([]contact.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, contact.SearchResult{
			Title:      r.Title,
			URL:        r.URL,
			Text:       r.Text,
			Summary:    r.Summary,
			Highlights: r.Highlights,
		})
	}

	outcomes, err := worker.ProcessAll(ctx, results, func(_ context.Context, r contact.SearchResult) (contact.Outcome, error) {
		return f.extractor.Extract(r, sreq.Query), nil
	}, worker.Options{
		Workers:       f.opts.Workers,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Query:            sreq.Query,
		TotalFound:       len(resp.Results),
		Contacts:         []contact.Contact{},
		Rejected:         map[contact.RejectReason]int{},
		RequestID:        resp.RequestID,
		AutopromptString: resp.AutopromptString,
		SearchTime:       f.opts.Now().UTC(),
	}
	for _, o := range outcomes {
		if o.Err != nil {
			report.Failed++
			log.Error().Err(o.Err).Str("url", o.Input.URL).Msg("extraction failed")
			continue
		}
		if !o.Output.Accepted() {
			report.Rejected[o.Output.Reason]++
			log.Debug().Str("url", o.Input.URL).Str("reason", string(o.Output.Reason)).Msg("result rejected")
			continue
		}
		if len(report.Contacts) >= sreq.NumResults {
			continue
		}
		c := o.Output.Contact
		c.ID = f.opts.NewID()
		c.CreatedAt = f.opts.Now().UTC()
		report.Contacts = append(report.Contacts, c)
	}
	report.TotalReturned = len(report.Contacts)

	log.Info().
		Int("found", report.TotalFound).
		Int("returned", report.TotalReturned).
		Int("failed", report.Failed).
		Msg("extraction finished")
	return report, nil
}

func (f *Finder) searchWithRetry(ctx context.Context, req exa.SearchRequest) (*exa.SearchResponse, error) {
	out, err := worker.ProcessAll(ctx, []exa.SearchRequest{req}, f.search.Search, worker.Options{
		Workers:        1,
		MaxRetries:     f.opts.MaxRetries,
		RequestTimeout: f.opts.RequestTimeout,
		FailurePolicy:  worker.FailurePolicyFailFast,
		OnRetry: func(attempt int, err error, sleep time.Duration) {
			f.opts.Logger.Warn().Err(err).Int("attempt", attempt).Dur("sleep", sleep).Msg("exa search retry")
		},
	})
	if err != nil {
		return nil, err
	}
	if out[0].Output == nil {
		return &exa.SearchResponse{}, nil
	}
	return out[0].Output, nil
}
