package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/geogotchi/geogotchi/internal/config"
	"github.com/geogotchi/geogotchi/internal/logging"
	"github.com/geogotchi/geogotchi/pkg/geonames"
	"github.com/geogotchi/geogotchi/pkg/geonames/fetch"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	envFile     string
	username    string
	baseURL     string
	timeout     time.Duration
	showMetrics bool

	client   *geonames.Client
	logger   *slog.Logger
	cleanup  logging.Cleanup
	registry *prometheus.Registry
}

// newRootCmd returns the command tree and the state its commands share. The
// caller runs teardown once the command has finished, successful or not.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "geonames",
		Short: "Query the geonames.org web services",
		Long: `geonames sends one request to the geonames.org JSON web services and prints
the result as JSON. The account is read from GEONAMES_USERNAME (or a .env
file) and defaults to the rate limited "demo" account.

Coordinates are positional; put "--" before a negative latitude, for example
  geonames nearby-place -- -33.87 151.21`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "file with environment variables to load")
	flags.StringVar(&a.username, "username", "", "geonames account (overrides GEONAMES_USERNAME)")
	flags.StringVar(&a.baseURL, "base-url", "", "service base URL (overrides GEONAMES_BASE_URL)")
	flags.DurationVar(&a.timeout, "timeout", 0, "request timeout (overrides GEONAMES_TIMEOUT)")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print request metrics to stderr when done")

	root.AddCommand(
		newNearbyCmd(a, "nearby-place", "Populated places closest to a point", nearbyPlace),
		newNearbyCmd(a, "nearby-toponym", "Toponyms closest to a point", nearbyToponym),
		newWikipediaCmd(a),
		newHierarchyCmd(a),
		newSearchCmd(a),
	)
	return root, a
}

// setup resolves the configuration and builds the client. Flags win over
// the environment.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("username") {
		cfg.Username = a.username
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{err: err}
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.logger, a.cleanup = logger, cleanup

	fetcherCfg := fetch.HTTPFetcherConfig{
		Timeout:      cfg.Timeout,
		RateLimitRPS: cfg.RateLimitRPS,
		RateBurst:    cfg.RateBurst,
	}
	if a.showMetrics {
		a.registry = prometheus.NewRegistry()
		metrics, err := fetch.NewMetrics(a.registry)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		fetcherCfg.Metrics = metrics
	}
	fetcher := fetch.NewHTTPFetcherWithConfig(logger, fetcherCfg)
	a.client = geonames.NewClient(geonames.Config{Username: cfg.Username, BaseURL: cfg.BaseURL}, fetcher, logger)
	logger.Debug("client_ready", "timeout", cfg.Timeout, "rate_limit_rps", cfg.RateLimitRPS)
	return nil
}

// teardown prints the metrics when requested and closes the log file. It is
// safe to call when setup never ran.
func (a *app) teardown() error {
	var metricsErr error
	if a.registry != nil {
		metricsErr = a.writeMetrics()
	}
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil && metricsErr == nil {
			return err
		}
	}
	return metricsErr
}

// writeMetrics prints one line per series: counters with their value and
// histograms with their sample count and sum.
func (a *app) writeMetrics() error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			series := family.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(a.stderr, "%s %g\n", series, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(a.stderr, "%s count=%d sum=%gs\n", series, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
