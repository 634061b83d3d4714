package ghl

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/httpx"
	"golang.org/x/time/rate"
)

// DefaultImportDelay paces contact creation to stay under the CRM's burst limits.
const DefaultImportDelay = 100 * time.Millisecond

// CRM is the part of Client the importer needs.
type CRM interface {
	CreateTag(ctx context.Context, name, color string) (*Tag, error)
	CreateContact(ctx context.Context, p ContactPayload) (*CreatedContact, error)
}

type ImportStatus string

const (
	StatusSuccess ImportStatus = "success"
	StatusSkipped ImportStatus = "skipped"
	StatusFailed  ImportStatus = "failed"
)

// ImportResult is the per-contact outcome.
type ImportResult struct {
	Contact    contact.Contact `json:"contact"`
	Status     ImportStatus    `json:"status"`
	CRMID      string          `json:"crmId,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
}

// ImportSummary aggregates one import run.
type ImportSummary struct {
	ListName   string         `json:"smartListName"`
	TagID      string         `json:"tagId,omitempty"`
	Total      int            `json:"totalContacts"`
	Successful int            `json:"successfulImports"`
	Skipped    int            `json:"skippedContacts"`
	Failed     int            `json:"failedImports"`
	Results    []ImportResult `json:"results"`
}

type ImporterOptions struct {
	// Delay between contact creations. <=0 uses DefaultImportDelay.
	Delay  time.Duration
	Now    func() time.Time
	Logger zerolog.Logger
}

// Importer creates contacts one at a time. It is not meant to be shared across goroutines.
type Importer struct {
	crm     CRM
	limiter *rate.Limiter
	now     func() time.Time
	log     zerolog.Logger
}

func NewImporter(crm CRM, opts ImporterOptions) *Importer {
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultImportDelay
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Importer{
		crm:     crm,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		now:     now,
		log:     opts.Logger,
	}
}

// Import tags contacts into the smart list named listName. Individual failures are recorded in
// the summary and never stop the batch; only an invalid request or ctx cancellation returns an
// error, in which case the partial summary is still returned.
func (im *Importer) Import(ctx context.Context, listName string, contacts []contact.Contact) (*ImportSummary, error) {
	listName = strings.TrimSpace(listName)
	if listName == "" {
		return nil, errors.New("import: smart list name is required")
	}
	if len(contacts) == 0 {
		return nil, errors.New("import: no contacts to import")
	}

	summary := &ImportSummary{ListName: listName, Total: len(contacts)}

	tag, err := im.crm.CreateTag(ctx, listName, SmartListColor)
	switch {
	case err != nil:
		// Most often the tag already exists; contacts still get the tag name.
		im.log.Warn().Err(err).Str("list", listName).Msg("smart list tag not created, continuing")
	case tag != nil:
		summary.TagID = tag.ID
	}

	for _, c := range contacts {
		if err := im.limiter.Wait(ctx); err != nil {
			return summary, err
		}
		res := im.importOne(ctx, listName, c)
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case StatusSuccess:
			summary.Successful++
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	im.log.Info().
		Str("list", listName).
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("import finished")
	return summary, nil
}

func (im *Importer) importOne(ctx context.Context, listName string, c contact.Contact) ImportResult {
	created, err := im.crm.CreateContact(ctx, BuildContactPayload(c, listName, im.now()))
	if err == nil {
		res := ImportResult{Contact: c, Status: StatusSuccess}
		if created != nil {
			res.CRMID = created.ID
		}
		return res
	}

	res := ImportResult{Contact: c, Status: StatusFailed, Reason: err.Error()}
	if h, ok := httpx.AsHTTPError(err); ok {
		res.StatusCode = h.StatusCode
		if h.Message != "" {
			res.Reason = h.Message
		}
		if alreadyExists(h) {
			res.Status = StatusSkipped
			res.Reason = "Contact already exists"
			im.log.Debug().Str("name", c.Name).Msg("contact already exists, skipped")
			return res
		}
	}
	im.log.Warn().Err(err).Str("name", c.Name).Msg("contact import failed")
	return res
}

func alreadyExists(h *httpx.HTTPError) bool {
	if h.Conflict() {
		return true
	}
	return strings.Contains(strings.ToLower(h.Message), "already exists")
}
