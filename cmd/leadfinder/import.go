package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/app"
	"github.com/shpitdev/leadfinder/internal/ghl"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		listName string
		asJSON   bool
		delay    time.Duration
	)
	delay, delayErr := envDuration("IMPORT_DELAY", ghl.DefaultImportDelay)

	cmd := &cobra.Command{
		Use:   "import <contacts.csv>",
		Short: "Import a contacts CSV into a GoHighLevel smart list",
		Long: `Import reads a CSV written by "leadfinder search" (only the name column is required),
drops rows with neither email nor phone, tags every contact with the smart list name and
EXA_IMPORT, and creates them one at a time. Existing contacts are reported as skipped.
Every import is kept in the account's history ("leadfinder usage imports").`,
		Example: `  leadfinder import dentists.csv --location loc_123 --list "Austin Dentists"`,
		Args:    positional(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delayErr != nil {
				return asConfigError(delayErr)
			}
			if strings.TrimSpace(listName) == "" {
				return configErrorf("--list is required")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return asConfigError(fmt.Errorf("open contacts: %w", err))
			}
			defer func() {
				_ = f.Close()
			}()

			ctx := cmd.Context()
			log := loggerFrom(cmd)
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()
			client, err := root.newGHLClient(ctx, store)
			if err != nil {
				return err
			}

			summary, err := app.RunImport(ctx, f,
				app.ImportParams{Account: root.accountRef(), ListName: listName},
				app.ImportDeps{Importer: ghl.NewImporter(client, ghl.ImporterOptions{Delay: delay, Logger: log}), Store: store, Logger: log})
			if summary != nil {
				if asJSON {
					enc := json.NewEncoder(root.stdout)
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(summary); encErr != nil && err == nil {
						err = encErr
					}
				} else {
					printImportSummary(root.stdout, summary)
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&listName, "list", "", "Smart list (tag) name to import into")
	f.BoolVar(&asJSON, "json", false, "Print the full import summary as JSON")
	f.DurationVar(&delay, "delay", delay, "Delay between contact creations (env: IMPORT_DELAY)")
	return cmd
}
