package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shpitdev/leadfinder/internal/enrich/gemini"
	"github.com/shpitdev/leadfinder/internal/exa"
)

// Exa is the part of the Exa client enrichment uses.
type Exa interface {
	Contents(ctx context.Context, urls []string, opts exa.ContentsOptions) (*exa.ContentsResponse, error)
	Search(ctx context.Context, req exa.SearchRequest) (*exa.SearchResponse, error)
}

// Pages fetches a business website directly.
type Pages interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// InsightsGenerator writes a business profile from gathered text.
type InsightsGenerator interface {
	Generate(ctx context.Context, in gemini.Input) (gemini.Insights, error)
	Model() string
}

type Config struct {
	Exa Exa
	// Pages and Insights are optional.
	Pages    Pages
	Insights InsightsGenerator
	Logger   zerolog.Logger
}

// ExaEnricher gathers page text for a record and extracts contact details from it.
type ExaEnricher struct {
	exa      Exa
	pages    Pages
	insights InsightsGenerator
	log      zerolog.Logger
}

func New(cfg Config) (*ExaEnricher, error) {
	if cfg.Exa == nil {
		return nil, errors.New("enrich: exa client is required")
	}
	return &ExaEnricher{exa: cfg.Exa, pages: cfg.Pages, insights: cfg.Insights, log: cfg.Logger}, nil
}

type document struct {
	text    string
	summary string
	url     string
	source  Source
}

// Enrich returns the record unenriched (and a nil error) when no source had anything to say.
// It returns an error only when every source it tried failed.
func (e *ExaEnricher) Enrich(ctx context.Context, rec Record, types []Type) (Result, error) {
	if len(types) == 0 {
		types = AllTypes
	}
	res := Result{Record: rec}
	doc, err := e.gather(ctx, rec)
	if err != nil {
		return res, err
	}
	if doc == nil {
		return res, nil
	}
	res.Source = doc.source
	if strings.TrimSpace(res.URL) == "" {
		res.URL = doc.url
	}
	if doc.summary != "" {
		res.Summary = doc.summary
	}

	if hasType(types, TypeEmail) {
		if emails := ExtractEmails(doc.text); len(emails) > 0 {
			res.Emails = emails
			res.Email = emails[0]
			res.Types = append(res.Types, TypeEmail)
		}
	}
	if hasType(types, TypePhone) {
		if phones := ExtractPhones(doc.text); len(phones) > 0 {
			res.Phones = phones
			res.Phone = phones[0]
			res.Types = append(res.Types, TypePhone)
		}
	}
	if hasType(types, TypeInsights) {
		if text, model := e.insightsFor(ctx, res, doc); text != "" {
			res.Insights = text
			res.Model = model
			res.Types = append(res.Types, TypeInsights)
		}
	}
	return res, nil
}

func (e *ExaEnricher) gather(ctx context.Context, rec Record) (*document, error) {
	var errs []error
	var doc *document

	if url := strings.TrimSpace(rec.URL); url != "" {
		resp, err := e.exa.Contents(ctx, []string{url}, exa.ContentsOptions{Text: true, Summary: true})
		switch {
		case err != nil:
			errs = append(errs, err)
			e.log.Debug().Err(err).Str("url", url).Msg("exa contents failed")
		case len(resp.Results) > 0 && (resp.Results[0].Text != "" || resp.Results[0].Summary != ""):
			r := resp.Results[0]
			doc = &document{text: r.Text, summary: r.Summary, url: url, source: SourceExaContents}
		}

		if e.pages != nil && (doc == nil || !hasContactDetails(doc.text)) {
			page, err := e.pages.Fetch(ctx, url)
			switch {
			case err != nil:
				errs = append(errs, err)
				e.log.Debug().Err(err).Str("url", url).Msg("website fetch failed")
			case doc == nil:
				doc = &document{text: page.ContactText(), summary: page.Description, url: url, source: SourceWebsite}
			default:
				doc.text += "\n" + page.ContactText()
			}
		}
	}

	if doc == nil {
		if name := strings.TrimSpace(rec.Name); name != "" {
			resp, err := e.exa.Search(ctx, exa.SearchRequest{
				Query:      name + " contact information email phone",
				NumResults: 1,
				Type:       "neural",
				Contents:   &exa.ContentsOptions{Text: true, Summary: true},
			})
			switch {
			case err != nil:
				errs = append(errs, err)
			case len(resp.Results) > 0:
				r := resp.Results[0]
				doc = &document{text: r.Text, summary: r.Summary, url: r.URL, source: SourceSearch}
			}
		}
	}

	if doc == nil && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return doc, nil
}

// insightsFor prefers the generator and falls back to the provider summary. It also returns the
// model name when the generator produced the text.
func (e *ExaEnricher) insightsFor(ctx context.Context, res Result, doc *document) (string, string) {
	if e.insights != nil {
		ins, err := e.insights.Generate(ctx, gemini.Input{
			Name:     res.Name,
			URL:      res.URL,
			Summary:  res.Summary,
			PageText: doc.text,
		})
		if err == nil {
			if text := ins.Text(); text != "" {
				return text, e.insights.Model()
			}
		} else {
			e.log.Warn().Err(err).Str("name", res.Name).Msg("insights generation failed, using summary")
		}
	}
	return strings.TrimSpace(res.Summary), ""
}

func hasContactDetails(text string) bool {
	return len(ExtractEmails(text)) > 0 || len(ExtractPhones(text)) > 0
}
