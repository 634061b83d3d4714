package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shpitdev/leadfinder/internal/app"
	"github.com/shpitdev/leadfinder/internal/ghl"
	"github.com/shpitdev/leadfinder/internal/logging"
	"github.com/shpitdev/leadfinder/internal/usage"
)

// defaultAccount meters runs that name neither an account nor a CRM location.
const defaultAccount = "local"

// rootOptions are the persistent flags every subcommand shares.
type rootOptions struct {
	logLevel   string
	logFormat  string
	dbPath     string
	account    string
	locationID string

	workers workerConfig
	// envErr is a malformed numeric env var, reported once a command runs.
	envErr error

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{
		logLevel:   envString("LOG_LEVEL", "info"),
		logFormat:  envString("LOG_FORMAT", string(logging.FormatConsole)),
		dbPath:     envString("LEADFINDER_DB", usage.DefaultDBPath),
		account:    envString("LEADFINDER_ACCOUNT", ""),
		locationID: envString("GHL_LOCATION_ID", ""),
		stdout:     stdout,
		stderr:     stderr,
	}
	opts.workers, opts.envErr = loadWorkerConfigFromEnv()

	root := &cobra.Command{
		Use:   "leadfinder",
		Short: "Find business leads with Exa, enrich them, and import them into GoHighLevel",
		Long: `leadfinder searches the web for businesses matching a query, turns each result into
a contact, and optionally imports the contacts into a GoHighLevel smart list.

Commands:
  search   Search Exa and write contacts (CSV or JSON), optionally importing them
  import   Import a contacts CSV into a GoHighLevel smart list
  enrich   Fill in emails, phones and insights for an id,name,url,summary CSV
  usage    Show plan, limits and usage history
  auth     Authorize the GoHighLevel marketplace app for a location

Environment:
  EXA_API_KEY, EXA_BASE_URL                     Exa search
  GHL_ACCESS_TOKEN, GHL_LOCATION_ID, GHL_BASE_URL
  GHL_CLIENT_ID, GHL_CLIENT_SECRET, GHL_REDIRECT_URL
  GEMINI_API_KEY, GEMINI_MODEL, GEMINI_BASE_URL  Optional insights
  LEADFINDER_DB, LEADFINDER_TABLES, LEADFINDER_ACCOUNT
  WORKERS, MAX_RETRIES, REQUEST_TIMEOUT, RATE_LIMIT_RPS, FAIL_FAST, IMPORT_DELAY
  LOG_LEVEL, LOG_FORMAT`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return configErrorf("unknown command %q", args[0])
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.envErr != nil {
				return asConfigError(opts.envErr)
			}
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return asConfigError(err)
			}
			format, err := logging.ParseFormat(opts.logFormat)
			if err != nil {
				return asConfigError(err)
			}
			logger := logging.New(opts.stderr, level, format, strings.SplitN(uuid.NewString(), "-", 2)[0])
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return asConfigError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: trace, debug, info, warn, error (env: LOG_LEVEL)")
	pf.StringVar(&opts.logFormat, "log-format", opts.logFormat, "Log format: console or json (env: LOG_FORMAT)")
	pf.StringVar(&opts.dbPath, "db", opts.dbPath, "Usage database path (env: LEADFINDER_DB)")
	pf.StringVar(&opts.account, "account", opts.account, "Account the run is metered against; defaults to the location id (env: LEADFINDER_ACCOUNT)")
	pf.StringVar(&opts.locationID, "location", opts.locationID, "GoHighLevel location id (env: GHL_LOCATION_ID)")

	root.AddCommand(
		newSearchCmd(opts),
		newImportCmd(opts),
		newEnrichCmd(opts),
		newUsageCmd(opts),
		newAuthCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// addWorkerFlags binds the shared worker knobs onto a command.
func addWorkerFlags(cmd *cobra.Command, w *workerConfig, withRateLimit bool) {
	f := cmd.Flags()
	f.IntVar(&w.Workers, "workers", w.Workers, "Number of concurrent workers (env: WORKERS)")
	f.IntVar(&w.MaxRetries, "max-retries", w.MaxRetries, "Max retries per item for transient failures (env: MAX_RETRIES)")
	f.DurationVar(&w.RequestTimeout, "request-timeout", w.RequestTimeout, "Per-item request timeout (env: REQUEST_TIMEOUT)")
	if withRateLimit {
		f.Float64Var(&w.RateLimitRPS, "rate-limit-rps", w.RateLimitRPS, "Global request rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
		f.BoolVar(&w.FailFast, "fail-fast", w.FailFast, "Stop on the first failed item (env: FAIL_FAST)")
	}
}

func positional(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return asConfigError(validate(cmd, args))
	}
}

func (o *rootOptions) accountRef() app.Account {
	a := app.Account{Identifier: strings.TrimSpace(o.account), LocationID: strings.TrimSpace(o.locationID)}
	if a.Identifier == "" && a.LocationID == "" {
		a.Identifier = defaultAccount
	}
	return a
}

// accountID is the metering identifier accountRef resolves to, plus its location.
func (o *rootOptions) accountID() (string, string) {
	a := o.accountRef()
	if a.Identifier != "" {
		return a.Identifier, a.LocationID
	}
	return a.LocationID, a.LocationID
}

func (o *rootOptions) openStore() (*usage.Store, error) {
	s, err := usage.NewStore(usage.Config{DBPath: o.dbPath})
	if err != nil {
		return nil, fmt.Errorf("open usage store: %w", err)
	}
	return s, nil
}

// newGHLClient authenticates with GHL_ACCESS_TOKEN when set, otherwise with the stored
// installation for the location, refreshing and persisting its token as needed.
func (o *rootOptions) newGHLClient(ctx context.Context, store *usage.Store) (*ghl.Client, error) {
	location := strings.TrimSpace(o.locationID)
	if location == "" {
		return nil, configErrorf("a GoHighLevel location is required (--location or GHL_LOCATION_ID)")
	}
	cfg := ghl.Config{
		BaseURL:    envString("GHL_BASE_URL", ghl.DefaultBaseURL),
		LocationID: location,
		Timeout:    30 * time.Second,
	}
	if token := envString("GHL_ACCESS_TOKEN", ""); token != "" {
		cfg.AccessToken = token
		c, err := ghl.NewClient(cfg)
		return c, asConfigError(err)
	}

	in, err := store.LoadInstallation(ctx, location)
	if err != nil {
		return nil, configErrorf("no GHL_ACCESS_TOKEN and no stored authorization for location %s (run `leadfinder auth exchange`): %w", location, err)
	}
	oauth, err := ghl.NewOAuth(loadOAuthConfigFromEnv())
	if err != nil {
		return nil, asConfigError(err)
	}
	cfg.TokenSource = oauth.TokenSource(ctx, *in, store)
	c, err := ghl.NewClient(cfg)
	return c, asConfigError(err)
}

func loggerFrom(cmd *cobra.Command) zerolog.Logger {
	return *zerolog.Ctx(cmd.Context())
}
