package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultImportHistoryLimit is how many imports ImportHistory returns when limit is not positive.
const DefaultImportHistoryLimit = 10

// ImportRecord is the input to RecordImport.
type ImportRecord struct {
	Identifier string
	LocationID string
	// SearchID links the import to the search that produced its contacts. Empty for CSV imports.
	SearchID   string
	Query      string
	ListName   string
	Total      int
	Successful int
	Skipped    int
	Failed     int
}

// ImportEntry is one stored CRM import.
type ImportEntry struct {
	ImportID   string
	Identifier string
	LocationID string
	SearchID   string
	Query      string
	ListName   string
	Total      int
	Successful int
	Skipped    int
	Failed     int
	Timestamp  time.Time
	MonthYear  string
}

// RecordImport stores the outcome of one CRM import.
func (s *Store) RecordImport(ctx context.Context, rec ImportRecord) (ImportEntry, error) {
	if strings.TrimSpace(rec.Identifier) == "" {
		return ImportEntry{}, fmt.Errorf("identifier is required")
	}
	now := s.clock()
	e := ImportEntry{
		ImportID:   uuid.NewString(),
		Identifier: rec.Identifier,
		LocationID: rec.LocationID,
		SearchID:   rec.SearchID,
		Query:      rec.Query,
		ListName:   rec.ListName,
		Total:      rec.Total,
		Successful: rec.Successful,
		Skipped:    rec.Skipped,
		Failed:     rec.Failed,
		Timestamp:  now,
		MonthYear:  monthYear(now),
	}
	if err := s.exec(ctx, `INSERT INTO import_history
		(import_id, identifier, location_id, search_id, query, list_name, total, contacts_imported,
		skipped, failed, timestamp, month_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ImportID, e.Identifier, e.LocationID, e.SearchID, e.Query, e.ListName, e.Total,
		e.Successful, e.Skipped, e.Failed, formatTime(e.Timestamp), e.MonthYear); err != nil {
		return ImportEntry{}, err
	}
	return e, nil
}

// ImportHistory returns the account's most recent imports, newest first.
func (s *Store) ImportHistory(ctx context.Context, identifier string, limit int) ([]ImportEntry, error) {
	if limit <= 0 {
		limit = DefaultImportHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT import_id, identifier, location_id, search_id, query,
		list_name, total, contacts_imported, skipped, failed, timestamp, month_year
		FROM import_history WHERE identifier = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ImportEntry
	for rows.Next() {
		var e ImportEntry
		var ts string
		if err := rows.Scan(&e.ImportID, &e.Identifier, &e.LocationID, &e.SearchID, &e.Query,
			&e.ListName, &e.Total, &e.Successful, &e.Skipped, &e.Failed, &ts, &e.MonthYear); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read import history: %w", err)
	}
	return out, nil
}
