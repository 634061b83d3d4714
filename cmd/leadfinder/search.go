package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/app"
	"github.com/shpitdev/leadfinder/internal/contact"
	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/ghl"
	"github.com/shpitdev/leadfinder/internal/leads"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		req         leads.Request
		outputPath  string
		format      string
		importList  string
		tablesPath  = envString("LEADFINDER_TABLES", "")
		seed        uint64
		importDelay time.Duration
		delayErr    error
	)
	importDelay, delayErr = envDuration("IMPORT_DELAY", ghl.DefaultImportDelay)
	workers := root.workers

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search Exa for businesses and write the extracted contacts",
		Example: `  leadfinder search "dentists in Austin TX" -o dentists.csv
  leadfinder search "law firms in Denver" --format json --num-results 40
  leadfinder search "roofers in Tampa" --location loc_123 --import-list "Tampa Roofers"`,
		Args: positional(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delayErr != nil {
				return asConfigError(delayErr)
			}
			req.Query = strings.Join(args, " ")
			outFormat, err := app.ParseOutputFormat(format)
			if err != nil {
				return asConfigError(err)
			}
			exaCfg, err := loadExaConfigFromEnv()
			if err != nil {
				return asConfigError(err)
			}
			exaCfg.Timeout = workers.RequestTimeout
			searcher, err := exa.New(exaCfg)
			if err != nil {
				return asConfigError(err)
			}
			tables, err := contact.LoadTablesFile(tablesPath)
			if err != nil {
				return asConfigError(err)
			}
			var rng contact.Rand
			if seed != 0 {
				rng = contact.SeededRand(seed)
			}

			ctx := cmd.Context()
			log := loggerFrom(cmd)
			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			deps := app.SearchDeps{
				Finder: leads.NewFinder(searcher, contact.NewExtractor(tables, rng), leads.Options{
					Workers:        workers.Workers,
					MaxRetries:     workers.MaxRetries,
					RequestTimeout: workers.RequestTimeout,
					Logger:         log,
				}),
				Store:  store,
				Logger: log,
			}
			if importList != "" {
				client, err := root.newGHLClient(ctx, store)
				if err != nil {
					return err
				}
				deps.Importer = ghl.NewImporter(client, ghl.ImporterOptions{Delay: importDelay, Logger: log})
			}

			w, closeOut, err := openOutput(outputPath, root.stdout)
			if err != nil {
				return err
			}
			res, runErr := app.RunSearch(ctx, w, app.SearchParams{
				Account:    root.accountRef(),
				Request:    req,
				Format:     outFormat,
				ImportList: importList,
			}, deps)
			if err := closeOut(); err != nil && runErr == nil {
				runErr = err
			}
			if res != nil && res.Report != nil && outputPath != "" {
				_, _ = fmt.Fprintf(root.stderr, "wrote %d contacts (%d results) to %s\n",
					res.Report.TotalReturned, res.Report.TotalFound, outputPath)
			}
			if res != nil && res.Import != nil {
				printImportSummary(root.stderr, res.Import)
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.IntVarP(&req.NumResults, "num-results", "n", leads.DefaultNumResults, fmt.Sprintf("Number of contacts to return (max %d)", leads.MaxNumResults))
	f.StringVar(&req.Type, "type", leads.DefaultSearchType, "Exa search type: neural, keyword or auto")
	f.BoolVar(&req.DisableAutoprompt, "no-autoprompt", false, "Disable Exa query autoprompting")
	f.StringSliceVar(&req.IncludeDomains, "include-domain", nil, "Only return results from these domains")
	f.StringSliceVar(&req.ExcludeDomains, "exclude-domain", nil, "Never return results from these domains (social sites are always excluded)")
	f.StringVar(&req.StartCrawlDate, "start-date", leads.DefaultCrawlStart, "Earliest crawl date (YYYY-MM-DD)")
	f.StringVar(&req.EndCrawlDate, "end-date", "", "Latest crawl date (YYYY-MM-DD), default today")
	f.StringVarP(&outputPath, "output", "o", "", "Output file path (default stdout)")
	f.StringVar(&format, "format", string(app.FormatCSV), "Output format: csv or json")
	f.StringVar(&importList, "import-list", "", "Import contactable results into this GoHighLevel smart list")
	f.DurationVar(&importDelay, "import-delay", importDelay, "Delay between CRM contact creations (env: IMPORT_DELAY)")
	f.StringVar(&tablesPath, "tables", tablesPath, "YAML keyword tables overlay (env: LEADFINDER_TABLES)")
	f.Uint64Var(&seed, "seed", 0, "Seed for reproducible ratings and generated emails (0 = random)")
	addWorkerFlags(cmd, &workers, false)
	return cmd
}

// openOutput returns stdout when path is empty. The close func reports write errors on the file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

func printImportSummary(w io.Writer, s *ghl.ImportSummary) {
	_, _ = fmt.Fprintf(w, "imported into %q: %d successful, %d skipped, %d failed of %d\n",
		s.ListName, s.Successful, s.Skipped, s.Failed, s.Total)
	for _, r := range s.Results {
		if r.Status == ghl.StatusFailed {
			_, _ = fmt.Fprintf(w, "  failed: %s: %s\n", r.Contact.Name, r.Reason)
		}
	}
}
