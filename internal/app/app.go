// Package app runs the lead finder end to end: usage checks, search, CSV output, CRM import,
// and enrichment. The CLI only parses flags and builds clients before calling in here.
package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shpitdev/leadfinder/internal/usage"
)

var (
	// ErrSearchNotAllowed is returned when the account has no searches left, its trial ended or it
	// was canceled.
	ErrSearchNotAllowed = errors.New("search not allowed")
	// ErrEnrichmentNotAllowed is returned when the plan or allowance forbids an enrichment run.
	ErrEnrichmentNotAllowed = errors.New("enrichment not allowed")
)

// Account is who the run is metered against. Identifier defaults to LocationID.
type Account struct {
	Identifier string
	LocationID string
}

func (a Account) id() string {
	if v := strings.TrimSpace(a.Identifier); v != "" {
		return v
	}
	return strings.TrimSpace(a.LocationID)
}

func (a Account) validate() error {
	if a.id() == "" {
		return errors.New("account identifier or location id is required")
	}
	return nil
}

func searchDenied(a usage.SearchAllowance) error {
	if a.Canceled {
		return fmt.Errorf("%w: subscription is canceled, choose a plan to resume", ErrSearchNotAllowed)
	}
	if a.TrialExpired {
		return fmt.Errorf("%w: trial expired, upgrade to a paid plan", ErrSearchNotAllowed)
	}
	return fmt.Errorf("%w: daily trial limit of %d searches reached", ErrSearchNotAllowed, a.Subscription.SearchLimit)
}
