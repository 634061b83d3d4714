package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/app"
	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/enrich/gemini"
	"github.com/shpitdev/leadfinder/internal/exa"
)

func newEnrichCmd(root *rootOptions) *cobra.Command {
	var (
		outputPath string
		typesFlag  string
		resume     bool
		searchID   string
	)
	workers := root.workers

	cmd := &cobra.Command{
		Use:   "enrich <records.csv>",
		Short: "Find emails, phones and insights for an id,name,url,summary CSV",
		Long: `Enrich reads records (name is required; id, url and summary are optional, and the
website and description columns of a search CSV are accepted in their place) and looks for
contact details in Exa page contents, then the website itself, then a name search.
Enrichment needs a paid plan; each contact with an email or phone found is billed.

With --resume, rows already marked ok in the existing output file are kept as is.`,
		Example: `  leadfinder enrich dentists.csv -o enriched.csv --types email,phone
  leadfinder enrich dentists.csv -o enriched.csv --resume`,
		Args: positional(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return configErrorf("--output is required")
			}
			types, err := enrich.ParseTypes(typesFlag)
			if err != nil {
				return asConfigError(err)
			}
			exaCfg, err := loadExaConfigFromEnv()
			if err != nil {
				return asConfigError(err)
			}
			exaCfg.Timeout = workers.RequestTimeout
			exaClient, err := exa.New(exaCfg)
			if err != nil {
				return asConfigError(err)
			}

			ctx := cmd.Context()
			log := loggerFrom(cmd)
			cfg := enrich.Config{
				Exa:    exaClient,
				Pages:  enrich.NewPageFetcher(&http.Client{Timeout: workers.RequestTimeout}),
				Logger: log,
			}
			gemCfg, ok, err := loadGeminiConfigFromEnv()
			if err != nil {
				return asConfigError(err)
			}
			if ok && slices.Contains(types, enrich.TypeInsights) {
				gen, err := gemini.New(ctx, gemCfg)
				if err != nil {
					return configErrorf("gemini config error: %w", err)
				}
				cfg.Insights = gen
			}
			en, err := enrich.New(cfg)
			if err != nil {
				return asConfigError(err)
			}

			in, err := os.Open(args[0])
			if err != nil {
				return asConfigError(fmt.Errorf("open records: %w", err))
			}
			defer func() {
				_ = in.Close()
			}()

			var previous io.Reader
			if resume {
				b, err := os.ReadFile(outputPath)
				switch {
				case errors.Is(err, fs.ErrNotExist):
					log.Info().Str("output", outputPath).Msg("resume: no previous output, enriching everything")
				case err != nil:
					return fmt.Errorf("read previous output: %w", err)
				default:
					previous = bytes.NewReader(b)
				}
			}

			store, err := root.openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			var res *app.EnrichOutcome
			err = writeFileAtomic(outputPath, func(w io.Writer) error {
				var runErr error
				res, runErr = app.RunEnrich(ctx, in, w, app.EnrichParams{
					Account:  root.accountRef(),
					Types:    types,
					Options:  workers.enrichOptions(),
					SearchID: searchID,
					Previous: previous,
				}, store, en, log)
				return runErr
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(root.stderr, "enriched %d of %d records (%d reused) into %s",
				res.Summary.Successful, res.Summary.Total, res.Cached, outputPath)
			if res.Usage != nil {
				_, _ = fmt.Fprintf(root.stderr, "; billed %d contacts at $%.2f = $%.2f",
					res.Usage.ContactsEnriched, res.Usage.CostPerContact, res.Usage.TotalCost)
			}
			_, _ = fmt.Fprintln(root.stderr)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputPath, "output", "o", "", "Output CSV path")
	f.StringVar(&typesFlag, "types", "", "Comma-separated enrichment types: email, phone, insights (default all)")
	f.BoolVar(&resume, "resume", false, "Reuse rows already enriched in the existing output file")
	f.StringVar(&searchID, "search-id", "", "Search usage id to attribute this enrichment to")
	addWorkerFlags(cmd, &workers, true)
	return cmd
}

// writeFileAtomic writes path through a temp file in the same directory so a failed run
// leaves any previous output untouched.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
