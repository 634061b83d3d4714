package pipeline

import (
	"errors"
	"io"
	"strings"

	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/redact"
)

const (
	StatusOK    = "ok"
	StatusEmpty = "not_found"
	StatusError = "error"
)

// Row is the stable enrichment output contract.
type Row struct {
	ID       string
	Name     string
	URL      string
	Email    string
	Phone    string
	Emails   string
	Phones   string
	Insights string
	Types    string
	Source   string
	Status   string
	Error    string
	Model    string
}

// Header returns the stable CSV header for Row.
func Header() []string {
	return []string{
		"id",
		"name",
		"url",
		"email",
		"phone",
		"emails",
		"phones",
		"insights",
		"enrichment_types",
		"source",
		"status",
		"error",
		"model",
	}
}

// ReadRecordsCSV reads enrichment inputs. "name" is required; id, url and summary are optional.
func ReadRecordsCSV(r io.Reader) ([]enrich.Record, error) {
	t, err := openTable(r, "name")
	if err != nil {
		return nil, err
	}
	var out []enrich.Record
	for {
		get, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec := enrich.Record{ID: get("id"), Name: get("name"), URL: get("url"), Summary: get("summary")}
		if rec.URL == "" {
			rec.URL = get("website")
		}
		if rec.Summary == "" {
			rec.Summary = get("description")
		}
		if rec.Name == "" && rec.URL == "" {
			continue
		}
		out = append(out, rec)
	}
}

// RowFromOutcome flattens one enrichment outcome. Error text is redacted.
func RowFromOutcome(o enrich.Outcome) Row {
	types := make([]string, 0, len(o.Types))
	for _, t := range o.Types {
		types = append(types, string(t))
	}
	row := Row{
		ID:       o.ID,
		Name:     o.Name,
		URL:      o.URL,
		Email:    o.Email,
		Phone:    o.Phone,
		Emails:   strings.Join(o.Emails, ";"),
		Phones:   strings.Join(o.Phones, ";"),
		Insights: o.Insights,
		Types:    strings.Join(types, ";"),
		Source:   string(o.Source),
		Model:    o.Model,
	}
	switch {
	case o.Err != nil:
		row.Status = StatusError
		row.Error = redact.Secrets(o.Err.Error())
	case o.Successful():
		row.Status = StatusOK
	default:
		row.Status = StatusEmpty
	}
	return row
}

func RowsFromOutcomes(outcomes []enrich.Outcome) []Row {
	rows := make([]Row, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, RowFromOutcome(o))
	}
	return rows
}

// WriteCSV writes rows as a CSV with the stable Header() ordering.
func WriteCSV(w io.Writer, rows []Row) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.ID,
			r.Name,
			r.URL,
			r.Email,
			r.Phone,
			r.Emails,
			r.Phones,
			r.Insights,
			r.Types,
			r.Source,
			r.Status,
			r.Error,
			r.Model,
		})
	}
	return writeAll(w, Header(), out)
}

// ReadCSV reads rows previously written by WriteCSV. Only "status" is required.
func ReadCSV(r io.Reader) ([]Row, error) {
	t, err := openTable(r, "status")
	if err != nil {
		return nil, err
	}
	var out []Row
	for {
		get, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Row{
			ID:       get("id"),
			Name:     get("name"),
			URL:      get("url"),
			Email:    get("email"),
			Phone:    get("phone"),
			Emails:   get("emails"),
			Phones:   get("phones"),
			Insights: get("insights"),
			Types:    get("enrichment_types"),
			Source:   get("source"),
			Status:   get("status"),
			Error:    get("error"),
			Model:    get("model"),
		})
	}
}

// RecordKey identifies an enrichment input across runs: its id when set, else name and url.
func RecordKey(id, name, url string) string {
	if id = strings.TrimSpace(id); id != "" {
		return "id:" + id
	}
	return "name:" + strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(url))
}

// Key is RecordKey for a row.
func (r Row) Key() string {
	return RecordKey(r.ID, r.Name, r.URL)
}
