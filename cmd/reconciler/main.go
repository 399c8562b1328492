package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/camarize/reconciler/internal/infrastructure/metrics"
	"github.com/camarize/reconciler/internal/infrastructure/store"
	"github.com/camarize/reconciler/internal/services/catalog"
	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const pushTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// options holds the command line flags. Flags left unset fall back to configuration.
type options struct {
	env         string
	format      string
	dryRun      bool
	catalogPath string
	concurrency int
	verbose     bool
}

func newRootCommand() *cobra.Command {
	return (&options{}).command()
}

func (o *options) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Remove dangling relation records from the camarize document store",
		Long: `Reconciler walks every relation collection of the camarize document store,
deletes join records whose endpoints no longer exist, and reports entities
that violate catalog expectations. The report is written to stdout; logs go
to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          o.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.env, "env", "e", "dev", "Environment to use (dev, test, prod)")
	flags.StringVarP(&o.format, "format", "f", reconcile.FormatText, "Report format (text or json)")
	flags.BoolVar(&o.dryRun, "dry-run", false, "Report dangling records without deleting them")
	flags.StringVar(&o.catalogPath, "catalog", "", "YAML catalog file (default: built-in catalog)")
	flags.IntVarP(&o.concurrency, "concurrency", "c", 0, "Max in-flight verifications per relation type")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func (o *options) run(cmd *cobra.Command, _ []string) error {
	if o.format != reconcile.FormatText && o.format != reconcile.FormatJSON {
		return NewExitError(ExitUsage, fmt.Sprintf("unknown format %q (want text or json)", o.format))
	}

	if err := config.InitConfig(o.env); err != nil {
		return WrapExitError(ExitFailure, "failed to initialize config", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load config", err)
	}
	if err := o.apply(cmd, cfg); err != nil {
		return WrapExitError(ExitUsage, "invalid flags", err)
	}

	logger := logging.New(cfg.Log, cmd.ErrOrStderr())

	cat, err := loadCatalog(cfg.Reconcile.CatalogPath)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load catalog", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, registry)

	connector := store.NewPostgresConnector(cfg, cat, logger, collector, exporter)
	if c := connector.Cache(); c != nil {
		collector.SetCache(c)
	}

	coordinator, err := reconcile.NewCoordinator(connector, cat, reconcile.Options{
		Concurrency:  cfg.Reconcile.Concurrency,
		PageSize:     cfg.Reconcile.PageSize,
		CheckTimeout: cfg.Reconcile.CheckTimeout,
		DryRun:       cfg.Reconcile.DryRun,
	}, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to create coordinator", err)
	}
	coordinator.SetRecorder(exporter)

	summary, runErr := coordinator.Run(cmd.Context())
	if runErr != nil {
		exporter.RecordRunFailure()
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		if err := metrics.Push(pushCtx, url, registry); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "reconciliation failed", runErr)
	}

	if err := reconcile.Write(cmd.OutOrStdout(), o.format, summary); err != nil {
		return WrapExitError(ExitFailure, "failed to write report", err)
	}
	return nil
}

// apply overrides configuration with explicitly set flags
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.Reconcile.DryRun = o.dryRun
	}
	if flags.Changed("catalog") {
		cfg.Reconcile.CatalogPath = o.catalogPath
	}
	if flags.Changed("concurrency") {
		cfg.Reconcile.Concurrency = o.concurrency
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg.Reconcile.Validate()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
