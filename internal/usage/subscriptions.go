package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	day           = 24 * time.Hour
	billingPeriod = 30 * day
	statsLimit    = 100
)

// Subscription is the plan and period counters of one account.
type Subscription struct {
	Identifier            string
	LocationID            string
	PlanID                string
	PlanName              string
	Status                string
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	MonthlyFee            float64
	SearchLimit           int
	SearchesUsed          int
	EnrichmentPrice       float64
	EnrichmentsUsed       int
	EnrichmentCostAccrued float64
	IsWhiteLabel          bool
	ContactLimit          int
	LastResetDate         time.Time
	BillingSource         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsTrial reports whether the subscription is on the trial plan.
func (s Subscription) IsTrial() bool {
	return s.PlanID == PlanTrial
}

// SearchAllowance is the outcome of CheckSearchLimit.
type SearchAllowance struct {
	CanSearch          bool
	Subscription       Subscription
	RemainingSearches  int
	TrialExpired       bool
	Canceled           bool
	TrialDaysRemaining int
}

// SearchRecord is the input to RecordSearch.
type SearchRecord struct {
	Identifier       string
	LocationID       string
	Query            string
	ContactsFound    int
	ContactsImported int
}

// SearchUsage is one stored search.
type SearchUsage struct {
	SearchID         string
	Identifier       string
	LocationID       string
	Query            string
	ContactsFound    int
	ContactsImported int
	Timestamp        time.Time
	MonthYear        string
}

// SearchStats aggregates the most recent search records.
type SearchStats struct {
	TotalSearches         int
	TotalContactsFound    int
	TotalContactsImported int
	Searches              []SearchUsage
}

const subscriptionColumns = `identifier, location_id, plan_id, plan_name, status,
	current_period_start, current_period_end, monthly_fee, search_limit, searches_used,
	enrichment_price, enrichments_used, enrichment_cost_accrued, is_white_label, contact_limit,
	last_reset_date, billing_source, created_at, updated_at`

// EnsureSubscription returns the account's subscription, starting a trial when none exists.
func (s *Store) EnsureSubscription(ctx context.Context, identifier, locationID string) (*Subscription, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	sub, err := s.GetSubscription(ctx, identifier)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrNoSubscription) {
		return nil, err
	}

	trial, _ := LookupPlan(PlanTrial)
	now := s.clock()
	sub = &Subscription{
		Identifier:         identifier,
		LocationID:         locationID,
		PlanID:             trial.ID,
		PlanName:           trial.Name,
		Status:             StatusTrial,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(time.Duration(trial.TrialDays) * day),
		SearchLimit:        trial.SearchLimit,
		LastResetDate:      now,
		BillingSource:      BillingTrial,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.putSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubscription loads a subscription. It returns ErrNoSubscription when none exists.
func (s *Store) GetSubscription(ctx context.Context, identifier string) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE identifier = ?`, identifier)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

// ChangePlan moves an account onto a paid plan and starts a fresh 30-day period. A non-empty
// whiteLabelID switches the account to that prepaid contact allowance.
func (s *Store) ChangePlan(ctx context.Context, identifier, planID, whiteLabelID string) (*Subscription, error) {
	plan, err := LookupPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.IsTrial {
		return nil, fmt.Errorf("cannot change to the trial plan")
	}
	var wl WhiteLabelPlan
	if strings.TrimSpace(whiteLabelID) != "" {
		if wl, err = LookupWhiteLabelPlan(whiteLabelID); err != nil {
			return nil, err
		}
	}

	sub, err := s.EnsureSubscription(ctx, identifier, "")
	if err != nil {
		return nil, err
	}
	now := s.clock()
	sub.PlanID = plan.ID
	sub.PlanName = plan.Name
	sub.Status = StatusActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = now.Add(billingPeriod)
	sub.MonthlyFee = plan.MonthlyFee
	sub.SearchLimit = plan.SearchLimit
	sub.SearchesUsed = 0
	sub.EnrichmentPrice = plan.EnrichmentPrice
	sub.EnrichmentsUsed = 0
	sub.EnrichmentCostAccrued = 0
	sub.IsWhiteLabel = wl.ID != ""
	sub.ContactLimit = wl.ContactLimit
	sub.LastResetDate = now
	sub.BillingSource = BillingMarketplace
	sub.UpdatedAt = now
	if err := s.putSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// CancelSubscription marks the account canceled. Counters and history are kept; ChangePlan
// reactivates it.
func (s *Store) CancelSubscription(ctx context.Context, identifier string) (*Subscription, error) {
	sub, err := s.GetSubscription(ctx, identifier)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.exec(ctx, `UPDATE subscriptions SET status = ?, updated_at = ? WHERE identifier = ?`,
		StatusCanceled, formatTime(now), identifier); err != nil {
		return nil, err
	}
	sub.Status = StatusCanceled
	sub.UpdatedAt = now
	return sub, nil
}

// CheckSearchLimit applies any due resets and reports whether the account may search.
//
// A trial past its end is marked trial_expired. Trial search counts reset on each new
// calendar day; paid plans roll over to a new 30-day period once the current one ends,
// clearing searches and accrued enrichment cost. Canceled accounts may not search.
func (s *Store) CheckSearchLimit(ctx context.Context, identifier string) (SearchAllowance, error) {
	sub, err := s.GetSubscription(ctx, identifier)
	if err != nil {
		return SearchAllowance{}, err
	}
	if sub.Status == StatusCanceled {
		return SearchAllowance{Subscription: *sub, Canceled: true}, nil
	}
	now := s.clock()

	if sub.IsTrial() {
		remaining := sub.CurrentPeriodEnd.Sub(now)
		if remaining <= 0 {
			if err := s.exec(ctx, `UPDATE subscriptions SET status = ?, updated_at = ? WHERE identifier = ?`,
				StatusTrialExpired, formatTime(now), identifier); err != nil {
				return SearchAllowance{}, err
			}
			sub.Status = StatusTrialExpired
			sub.UpdatedAt = now
			return SearchAllowance{Subscription: *sub, TrialExpired: true}, nil
		}

		if !sameDay(now, sub.LastResetDate, s.loc) {
			if err := s.exec(ctx, `UPDATE subscriptions SET searches_used = 0, last_reset_date = ?, updated_at = ? WHERE identifier = ?`,
				formatTime(now), formatTime(now), identifier); err != nil {
				return SearchAllowance{}, err
			}
			sub.SearchesUsed = 0
			sub.LastResetDate = now
			sub.UpdatedAt = now
		}

		left := max(0, sub.SearchLimit-sub.SearchesUsed)
		return SearchAllowance{
			CanSearch:          left > 0,
			Subscription:       *sub,
			RemainingSearches:  left,
			TrialDaysRemaining: int(math.Ceil(remaining.Hours() / 24)),
		}, nil
	}

	if now.After(sub.CurrentPeriodEnd) {
		end := now.Add(billingPeriod)
		if err := s.exec(ctx, `UPDATE subscriptions SET searches_used = 0, enrichments_used = 0,
			enrichment_cost_accrued = 0, last_reset_date = ?, current_period_start = ?,
			current_period_end = ?, updated_at = ? WHERE identifier = ?`,
			formatTime(now), formatTime(now), formatTime(end), formatTime(now), identifier); err != nil {
			return SearchAllowance{}, err
		}
		sub.SearchesUsed = 0
		sub.EnrichmentsUsed = 0
		sub.EnrichmentCostAccrued = 0
		sub.LastResetDate = now
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = end
		sub.UpdatedAt = now
	}
	return SearchAllowance{
		CanSearch:         true,
		Subscription:      *sub,
		RemainingSearches: UnlimitedRemaining,
	}, nil
}

// RecordSearch stores one search and increments the account's search counter.
func (s *Store) RecordSearch(ctx context.Context, rec SearchRecord) (SearchUsage, error) {
	now := s.clock()
	u := SearchUsage{
		SearchID:         uuid.NewString(),
		Identifier:       rec.Identifier,
		LocationID:       rec.LocationID,
		Query:            rec.Query,
		ContactsFound:    rec.ContactsFound,
		ContactsImported: rec.ContactsImported,
		Timestamp:        now,
		MonthYear:        monthYear(now),
	}
	if err := s.exec(ctx, `INSERT INTO search_usage
		(search_id, identifier, location_id, query, contacts_found, contacts_imported, timestamp, month_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.SearchID, u.Identifier, u.LocationID, u.Query, u.ContactsFound, u.ContactsImported,
		formatTime(u.Timestamp), u.MonthYear); err != nil {
		return SearchUsage{}, err
	}
	if err := s.exec(ctx, `UPDATE subscriptions SET searches_used = searches_used + 1, updated_at = ? WHERE identifier = ?`,
		formatTime(now), rec.Identifier); err != nil {
		return SearchUsage{}, err
	}
	return u, nil
}

// UsageStats sums the 100 most recent searches, optionally limited to one "2006-01" month.
func (s *Store) UsageStats(ctx context.Context, identifier, month string) (SearchStats, error) {
	q := `SELECT search_id, identifier, location_id, query, contacts_found, contacts_imported, timestamp, month_year
		FROM search_usage WHERE identifier = ?`
	args := []any{identifier}
	if month != "" {
		q += ` AND month_year = ?`
		args = append(args, month)
	}
	q += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, statsLimit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return SearchStats{}, fmt.Errorf("query search usage: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var stats SearchStats
	for rows.Next() {
		var u SearchUsage
		var ts string
		if err := rows.Scan(&u.SearchID, &u.Identifier, &u.LocationID, &u.Query,
			&u.ContactsFound, &u.ContactsImported, &ts, &u.MonthYear); err != nil {
			return SearchStats{}, fmt.Errorf("scan search usage: %w", err)
		}
		if u.Timestamp, err = parseTime(ts); err != nil {
			return SearchStats{}, err
		}
		stats.TotalSearches++
		stats.TotalContactsFound += u.ContactsFound
		stats.TotalContactsImported += u.ContactsImported
		stats.Searches = append(stats.Searches, u)
	}
	if err := rows.Err(); err != nil {
		return SearchStats{}, fmt.Errorf("read search usage: %w", err)
	}
	return stats, nil
}

func (s *Store) putSubscription(ctx context.Context, sub *Subscription) error {
	return s.exec(ctx, `INSERT OR REPLACE INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Identifier, sub.LocationID, sub.PlanID, sub.PlanName, sub.Status,
		formatTime(sub.CurrentPeriodStart), formatTime(sub.CurrentPeriodEnd), sub.MonthlyFee,
		sub.SearchLimit, sub.SearchesUsed, sub.EnrichmentPrice, sub.EnrichmentsUsed,
		sub.EnrichmentCostAccrued, sub.IsWhiteLabel, sub.ContactLimit,
		formatTime(sub.LastResetDate), sub.BillingSource, formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt))
}

func (s *Store) exec(ctx context.Context, q string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("usage store: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	var start, end, lastReset, created, updated string
	if err := row.Scan(&sub.Identifier, &sub.LocationID, &sub.PlanID, &sub.PlanName, &sub.Status,
		&start, &end, &sub.MonthlyFee, &sub.SearchLimit, &sub.SearchesUsed,
		&sub.EnrichmentPrice, &sub.EnrichmentsUsed, &sub.EnrichmentCostAccrued, &sub.IsWhiteLabel,
		&sub.ContactLimit, &lastReset, &sub.BillingSource, &created, &updated); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&sub.CurrentPeriodStart, start},
		{&sub.CurrentPeriodEnd, end},
		{&sub.LastResetDate, lastReset},
		{&sub.CreatedAt, created},
		{&sub.UpdatedAt, updated},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = t
	}
	return &sub, nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
