package usage

import (
	"fmt"
	"strings"
)

// Plan is a billing plan. Paid plans have unlimited searches; SearchLimit is the figure shown.
type Plan struct {
	ID              string
	Name            string
	MonthlyFee      float64
	EnrichmentPrice float64
	SearchLimit     int
	// TrialDays is the trial length. Zero for paid plans.
	TrialDays int
	IsTrial   bool
}

// WhiteLabelPlan is a prepaid reseller plan with a fixed monthly contact allowance.
type WhiteLabelPlan struct {
	ID           string
	Name         string
	ContactLimit int
}

const (
	PlanTrial      = "trial"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

const (
	StatusActive       = "active"
	StatusTrial        = "trial"
	StatusTrialExpired = "trial_expired"
	StatusCanceled     = "canceled"
)

const (
	BillingTrial       = "trial"
	BillingMarketplace = "ghl_marketplace"
)

// UnlimitedRemaining is reported as the remaining search count on paid plans.
const UnlimitedRemaining = 999999

var plans = []Plan{
	{ID: PlanTrial, Name: "7-Day Free Trial", SearchLimit: 3, TrialDays: 7, IsTrial: true},
	{ID: PlanStarter, Name: "Starter Plan", MonthlyFee: 29, EnrichmentPrice: 1.25, SearchLimit: 1000},
	{ID: PlanPro, Name: "Pro Plan", MonthlyFee: 99, EnrichmentPrice: 0.85, SearchLimit: 1000},
	{ID: PlanEnterprise, Name: "Enterprise Plan", MonthlyFee: 199, EnrichmentPrice: 0.75, SearchLimit: 1000},
}

var whiteLabelPlans = []WhiteLabelPlan{
	{ID: "starter_wl", Name: "White Label Starter", ContactLimit: 100},
	{ID: "pro_wl", Name: "White Label Pro", ContactLimit: 250},
	{ID: "elite_wl", Name: "White Label Elite", ContactLimit: 500},
}

// Plans returns the billing plans in display order.
func Plans() []Plan {
	return append([]Plan(nil), plans...)
}

// LookupPlan finds a plan by id, case-insensitively.
func LookupPlan(id string) (Plan, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("unknown plan %q", id)
}

// LookupWhiteLabelPlan finds a white-label plan by id, case-insensitively.
func LookupWhiteLabelPlan(id string) (WhiteLabelPlan, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range whiteLabelPlans {
		if p.ID == id {
			return p, nil
		}
	}
	return WhiteLabelPlan{}, fmt.Errorf("unknown white-label plan %q", id)
}
