package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Eligibility is the outcome of CanEnrich. Reason is set when CanEnrich is false.
type Eligibility struct {
	CanEnrich bool
	Reason    string
	Plan      Plan
}

// PlanLimits describes a white-label allowance.
type PlanLimits struct {
	WithinLimits  bool
	ContactLimit  int
	ContactsUsed  int
	ContactsAfter int
}

// Quote prices an enrichment run before it starts.
type Quote struct {
	CanAfford      bool
	CostPerContact float64
	TotalCost      float64
	ContactCount   int
	Subscription   Subscription
	// Limits is set for white-label accounts, which are prepaid and so quote zero cost.
	Limits *PlanLimits
}

// EnrichmentRecord is the input to RecordEnrichment.
type EnrichmentRecord struct {
	Identifier       string
	LocationID       string
	SearchID         string
	ContactsEnriched int
	Types            []string
}

// EnrichmentUsage is one stored enrichment run.
type EnrichmentUsage struct {
	EnrichmentID     string
	Identifier       string
	LocationID       string
	SearchID         string
	ContactsEnriched int
	Types            []string
	CostPerContact   float64
	TotalCost        float64
	Timestamp        time.Time
	MonthYear        string
	PlanID           string
}

// EnrichmentStats aggregates the most recent enrichment records.
type EnrichmentStats struct {
	TotalEnrichments int
	TotalCost        float64
	History          []EnrichmentUsage
}

// CanEnrich reports whether the account may start an enrichment run.
func (s *Store) CanEnrich(ctx context.Context, identifier string) (Eligibility, error) {
	sub, err := s.GetSubscription(ctx, identifier)
	if errors.Is(err, ErrNoSubscription) {
		return Eligibility{Reason: "No subscription found"}, nil
	}
	if err != nil {
		return Eligibility{}, err
	}
	plan, _ := LookupPlan(sub.PlanID)

	switch {
	case sub.Status == StatusCanceled:
		return Eligibility{Reason: "Subscription is canceled", Plan: plan}, nil
	case plan.IsTrial || sub.IsTrial():
		return Eligibility{Reason: "Enrichment requires a paid subscription", Plan: plan}, nil
	case sub.Status != StatusActive:
		return Eligibility{Reason: "Subscription is not active", Plan: plan}, nil
	case sub.IsWhiteLabel && sub.ContactLimit > 0 && sub.ContactLimit-sub.EnrichmentsUsed <= 0:
		return Eligibility{Reason: "Contact limit reached for this billing period", Plan: plan}, nil
	}
	return Eligibility{CanEnrich: true, Plan: plan}, nil
}

// EnrichmentQuote prices enriching contactCount contacts on the account's plan.
func (s *Store) EnrichmentQuote(ctx context.Context, identifier string, contactCount int) (Quote, error) {
	sub, err := s.GetSubscription(ctx, identifier)
	if err != nil {
		return Quote{}, err
	}
	plan, err := LookupPlan(sub.PlanID)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid plan: %w", err)
	}

	q := Quote{ContactCount: contactCount, Subscription: *sub}
	if plan.IsTrial {
		return q, nil
	}

	if sub.IsWhiteLabel && sub.ContactLimit > 0 {
		remaining := sub.ContactLimit - sub.EnrichmentsUsed
		q.CanAfford = remaining >= contactCount
		q.Limits = &PlanLimits{
			WithinLimits:  q.CanAfford,
			ContactLimit:  sub.ContactLimit,
			ContactsUsed:  sub.EnrichmentsUsed,
			ContactsAfter: sub.EnrichmentsUsed + contactCount,
		}
		return q, nil
	}

	q.CanAfford = true
	q.CostPerContact = plan.EnrichmentPrice
	q.TotalCost = plan.EnrichmentPrice * float64(contactCount)
	return q, nil
}

// RecordEnrichment stores one enrichment run at the subscription's per-contact price and
// increments the period counters.
func (s *Store) RecordEnrichment(ctx context.Context, rec EnrichmentRecord) (EnrichmentUsage, error) {
	sub, err := s.GetSubscription(ctx, rec.Identifier)
	if err != nil {
		return EnrichmentUsage{}, fmt.Errorf("record enrichment: %w", err)
	}
	now := s.clock()
	u := EnrichmentUsage{
		EnrichmentID:     uuid.NewString(),
		Identifier:       rec.Identifier,
		LocationID:       rec.LocationID,
		SearchID:         rec.SearchID,
		ContactsEnriched: rec.ContactsEnriched,
		Types:            append([]string(nil), rec.Types...),
		CostPerContact:   sub.EnrichmentPrice,
		TotalCost:        sub.EnrichmentPrice * float64(rec.ContactsEnriched),
		Timestamp:        now,
		MonthYear:        monthYear(now),
		PlanID:           sub.PlanID,
	}
	if err := s.exec(ctx, `INSERT INTO enrichment_usage
		(enrichment_id, identifier, location_id, search_id, contacts_enriched, enrichment_types,
		cost_per_contact, total_cost, timestamp, month_year, plan_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.EnrichmentID, u.Identifier, u.LocationID, u.SearchID, u.ContactsEnriched,
		strings.Join(u.Types, ","), u.CostPerContact, u.TotalCost, formatTime(u.Timestamp),
		u.MonthYear, u.PlanID); err != nil {
		return EnrichmentUsage{}, err
	}
	if err := s.exec(ctx, `UPDATE subscriptions SET enrichments_used = enrichments_used + ?,
		enrichment_cost_accrued = enrichment_cost_accrued + ?, updated_at = ? WHERE identifier = ?`,
		u.ContactsEnriched, u.TotalCost, formatTime(now), rec.Identifier); err != nil {
		return EnrichmentUsage{}, err
	}
	return u, nil
}

// EnrichmentStats sums the 100 most recent enrichment runs, optionally limited to one month.
func (s *Store) EnrichmentStats(ctx context.Context, identifier, month string) (EnrichmentStats, error) {
	q := `SELECT enrichment_id, identifier, location_id, search_id, contacts_enriched, enrichment_types,
		cost_per_contact, total_cost, timestamp, month_year, plan_id
		FROM enrichment_usage WHERE identifier = ?`
	args := []any{identifier}
	if month != "" {
		q += ` AND month_year = ?`
		args = append(args, month)
	}
	q += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, statsLimit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return EnrichmentStats{}, fmt.Errorf("query enrichment usage: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var stats EnrichmentStats
	for rows.Next() {
		var u EnrichmentUsage
		var types, ts string
		if err := rows.Scan(&u.EnrichmentID, &u.Identifier, &u.LocationID, &u.SearchID,
			&u.ContactsEnriched, &types, &u.CostPerContact, &u.TotalCost, &ts, &u.MonthYear,
			&u.PlanID); err != nil {
			return EnrichmentStats{}, fmt.Errorf("scan enrichment usage: %w", err)
		}
		if types != "" {
			u.Types = strings.Split(types, ",")
		}
		if u.Timestamp, err = parseTime(ts); err != nil {
			return EnrichmentStats{}, err
		}
		stats.TotalEnrichments += u.ContactsEnriched
		stats.TotalCost += u.TotalCost
		stats.History = append(stats.History, u)
	}
	if err := rows.Err(); err != nil {
		return EnrichmentStats{}, fmt.Errorf("read enrichment usage: %w", err)
	}
	return stats, nil
}
