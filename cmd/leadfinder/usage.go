package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/usage"
)

func newUsageCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show plan, limits and usage history",
	}
	cmd.AddCommand(newUsageShowCmd(root), newUsagePlansCmd(root), newUsageSetPlanCmd(root),
		newUsageImportsCmd(root), newUsageCancelCmd(root))
	return cmd
}

type usageReport struct {
	Subscription usage.Subscription    `json:"subscription"`
	Allowance    usage.SearchAllowance `json:"allowance"`
	Searches     usage.SearchStats     `json:"searches"`
	Enrichments  usage.EnrichmentStats `json:"enrichments"`
}

func newUsageShowCmd(root *rootOptions) *cobra.Command {
	var (
		month  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the account's plan, remaining searches and recent usage",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month != "" {
				if _, err := time.Parse("2006-01", month); err != nil {
					return configErrorf("invalid --month %q (want YYYY-MM)", month)
				}
			}
			ctx := cmd.Context()
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			id, location := root.accountID()
			if _, err := store.EnsureSubscription(ctx, id, location); err != nil {
				return err
			}
			allowance, err := store.CheckSearchLimit(ctx, id)
			if err != nil {
				return err
			}
			searches, err := store.UsageStats(ctx, id, month)
			if err != nil {
				return err
			}
			enrichments, err := store.EnrichmentStats(ctx, id, month)
			if err != nil {
				return err
			}
			rep := usageReport{
				Subscription: allowance.Subscription,
				Allowance:    allowance,
				Searches:     searches,
				Enrichments:  enrichments,
			}
			if asJSON {
				enc := json.NewEncoder(root.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printUsage(root.stdout, rep)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Only count usage from this month (YYYY-MM)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printUsage(w io.Writer, r usageReport) error {
	sub := r.Subscription
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Account:\t%s\n", sub.Identifier)
	_, _ = fmt.Fprintf(tw, "Plan:\t%s (%s)\n", sub.PlanName, sub.Status)
	_, _ = fmt.Fprintf(tw, "Period:\t%s to %s\n", sub.CurrentPeriodStart.Format(time.DateOnly), sub.CurrentPeriodEnd.Format(time.DateOnly))
	if sub.IsTrial() {
		_, _ = fmt.Fprintf(tw, "Searches today:\t%d of %d (%d days of trial left)\n", sub.SearchesUsed, sub.SearchLimit, r.Allowance.TrialDaysRemaining)
	} else {
		_, _ = fmt.Fprintf(tw, "Searches this period:\t%d (unlimited)\n", sub.SearchesUsed)
		_, _ = fmt.Fprintf(tw, "Enrichment price:\t$%.2f per contact\n", sub.EnrichmentPrice)
		_, _ = fmt.Fprintf(tw, "Enriched this period:\t%d ($%.2f accrued)\n", sub.EnrichmentsUsed, sub.EnrichmentCostAccrued)
		if sub.IsWhiteLabel {
			_, _ = fmt.Fprintf(tw, "Contact allowance:\t%d of %d used\n", sub.EnrichmentsUsed, sub.ContactLimit)
		}
	}
	_, _ = fmt.Fprintf(tw, "Recent searches:\t%d (%d contacts found, %d imported)\n",
		r.Searches.TotalSearches, r.Searches.TotalContactsFound, r.Searches.TotalContactsImported)
	_, _ = fmt.Fprintf(tw, "Recent enrichments:\t%d contacts ($%.2f)\n", r.Enrichments.TotalEnrichments, r.Enrichments.TotalCost)
	for _, s := range r.Searches.Searches {
		_, _ = fmt.Fprintf(tw, "  %s\t%q\t%d found\t%d imported\n", s.Timestamp.Format(time.DateTime), s.Query, s.ContactsFound, s.ContactsImported)
	}
	return tw.Flush()
}

func newUsagePlansCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the available plans",
		Args:  positional(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(root.stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tMONTHLY\tPER CONTACT\tSEARCHES")
			for _, p := range usage.Plans() {
				searches := "unlimited"
				if p.IsTrial {
					searches = fmt.Sprintf("%d/day for %d days", p.SearchLimit, p.TrialDays)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t$%.0f\t$%.2f\t%s\n", p.ID, p.Name, p.MonthlyFee, p.EnrichmentPrice, searches)
			}
			return tw.Flush()
		},
	}
}

func newUsageSetPlanCmd(root *rootOptions) *cobra.Command {
	var whiteLabel string
	cmd := &cobra.Command{
		Use:   "set-plan <starter|pro|enterprise>",
		Short: "Move the account onto a paid plan and start a new billing period",
		Args:  positional(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := usage.LookupPlan(args[0]); err != nil {
				return asConfigError(err)
			}
			if whiteLabel != "" {
				if _, err := usage.LookupWhiteLabelPlan(whiteLabel); err != nil {
					return asConfigError(err)
				}
			}
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			id, _ := root.accountID()
			sub, err := store.ChangePlan(cmd.Context(), id, args[0], whiteLabel)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(root.stdout, "%s is now on %s until %s\n", sub.Identifier, sub.PlanName, sub.CurrentPeriodEnd.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&whiteLabel, "white-label", "", "White-label allowance: starter_wl, pro_wl or elite_wl")
	return cmd
}

func newUsageImportsCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List the account's most recent CRM imports",
		Args:  positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return configErrorf("--limit must not be negative")
			}
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			id, _ := root.accountID()
			history, err := store.ImportHistory(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			if asJSON {
				if history == nil {
					history = []usage.ImportEntry{}
				}
				enc := json.NewEncoder(root.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(history)
			}
			if len(history) == 0 {
				_, _ = fmt.Fprintf(root.stdout, "no imports for %s\n", id)
				return nil
			}
			tw := tabwriter.NewWriter(root.stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "WHEN\tLIST\tQUERY\tIMPORTED\tSKIPPED\tFAILED")
			for _, e := range history {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d of %d\t%d\t%d\n",
					e.Timestamp.Format(time.DateTime), e.ListName, e.Query, e.Successful, e.Total, e.Skipped, e.Failed)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", usage.DefaultImportHistoryLimit, "How many imports to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newUsageCancelCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the account's subscription",
		Long: `cancel marks the subscription canceled. Searches and enrichment are refused until
"leadfinder usage set-plan" starts a new plan. Usage history is kept.`,
		Args: positional(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			id, _ := root.accountID()
			sub, err := store.CancelSubscription(cmd.Context(), id)
			if err != nil {
				return err
			}
			log := loggerFrom(cmd)
			log.Info().Str("account", sub.Identifier).Str("plan", sub.PlanID).Msg("subscription canceled")
			_, _ = fmt.Fprintf(root.stdout, "%s (%s) is canceled\n", sub.Identifier, sub.PlanName)
			return nil
		},
	}
}
