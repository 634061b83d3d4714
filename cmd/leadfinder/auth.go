package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/ghl"
)

func newAuthCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize the GoHighLevel marketplace app for a location",
		Long: `auth runs the marketplace OAuth flow by hand: "auth url" prints the location chooser
link, and "auth exchange" redeems the code GoHighLevel redirects back with and stores the
token for that location. Later imports refresh and re-store it automatically.

Requires GHL_CLIENT_ID and GHL_CLIENT_SECRET; GHL_REDIRECT_URL must match the app settings.`,
	}
	cmd.AddCommand(newAuthURLCmd(root), newAuthExchangeCmd(root))
	return cmd
}

func newAuthURLCmd(root *rootOptions) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the URL that installs the app on a location",
		Args:  positional(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			oauth, err := ghl.NewOAuth(loadOAuthConfigFromEnv())
			if err != nil {
				return asConfigError(err)
			}
			_, _ = fmt.Fprintln(root.stdout, oauth.AuthCodeURL(state))
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "leadfinder", "Opaque state echoed back on the redirect")
	return cmd
}

func newAuthExchangeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Redeem an authorization code and store the location's token",
		Args:  positional(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			oauth, err := ghl.NewOAuth(loadOAuthConfigFromEnv())
			if err != nil {
				return asConfigError(err)
			}
			ctx := cmd.Context()
			in, err := oauth.Exchange(ctx, args[0])
			if err != nil {
				return err
			}
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			if err := store.SaveInstallation(ctx, *in); err != nil {
				return err
			}
			// The installed location starts its own trial unless it already has a plan.
			if _, err := store.EnsureSubscription(ctx, in.LocationID, in.LocationID); err != nil {
				return err
			}
			log := loggerFrom(cmd)
			log.Info().Str("location_id", in.LocationID).Time("expiry", in.Expiry).Msg("authorization stored")
			_, _ = fmt.Fprintf(root.stdout, "authorized location %s\n", in.LocationID)
			return nil
		},
	}
}
