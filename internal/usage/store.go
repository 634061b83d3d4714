// Package usage meters searches and enrichments per account and keeps CRM installations.
//
// Everything lives in one SQLite file: subscriptions, per-search and per-enrichment usage
// records, CRM import history, and the OAuth token set of each installed location.
package usage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.leadfinder/usage.db"

// ErrNoSubscription is returned when an identifier has no subscription row.
var ErrNoSubscription = errors.New("no subscription found")

// Config holds configuration for NewStore.
type Config struct {
	// DBPath is the database file. Pass ":memory:" for an in-memory database (testing).
	DBPath string
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
	// Location decides calendar-day boundaries for the trial daily reset. Defaults to time.Local.
	Location *time.Location
}

// Store is the SQLite-backed usage store.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
	loc    *time.Location
}

// NewStore opens (creating if needed) the database and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		path = DefaultDBPath
	}
	path = expandPath(path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across queries and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: path, now: cfg.Now, loc: cfg.Location}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the resolved database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			identifier TEXT PRIMARY KEY,
			location_id TEXT NOT NULL DEFAULT '',
			plan_id TEXT NOT NULL,
			plan_name TEXT NOT NULL,
			status TEXT NOT NULL,
			current_period_start TEXT NOT NULL,
			current_period_end TEXT NOT NULL,
			monthly_fee REAL NOT NULL DEFAULT 0,
			search_limit INTEGER NOT NULL DEFAULT 0,
			searches_used INTEGER NOT NULL DEFAULT 0,
			enrichment_price REAL NOT NULL DEFAULT 0,
			enrichments_used INTEGER NOT NULL DEFAULT 0,
			enrichment_cost_accrued REAL NOT NULL DEFAULT 0,
			is_white_label INTEGER NOT NULL DEFAULT 0,
			contact_limit INTEGER NOT NULL DEFAULT 0,
			last_reset_date TEXT NOT NULL,
			billing_source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS search_usage (
			search_id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL,
			contacts_found INTEGER NOT NULL DEFAULT 0,
			contacts_imported INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL,
			month_year TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_usage_identifier ON search_usage(identifier, timestamp)`,
		`CREATE TABLE IF NOT EXISTS enrichment_usage (
			enrichment_id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			search_id TEXT NOT NULL DEFAULT '',
			contacts_enriched INTEGER NOT NULL DEFAULT 0,
			enrichment_types TEXT NOT NULL DEFAULT '',
			cost_per_contact REAL NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL,
			month_year TEXT NOT NULL,
			plan_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_enrichment_usage_identifier ON enrichment_usage(identifier, timestamp)`,
		`CREATE TABLE IF NOT EXISTS import_history (
			import_id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			search_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL DEFAULT '',
			list_name TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			contacts_imported INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL,
			month_year TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_history_identifier ON import_history(identifier, timestamp)`,
		`CREATE TABLE IF NOT EXISTS installations (
			location_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			token_type TEXT NOT NULL DEFAULT '',
			scopes TEXT NOT NULL DEFAULT '',
			expiry TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// monthYear formats t as "2006-01" for aggregation.
func monthYear(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// timeLayout is fixed width so stored timestamps sort as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", v, err)
	}
	return t, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
