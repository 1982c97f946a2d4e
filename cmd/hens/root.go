package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/hens-workflow/internal/config"
	"github.com/i474232898/hens-workflow/internal/logging"
	"github.com/i474232898/hens-workflow/internal/metrics"
	"github.com/i474232898/hens-workflow/internal/monitor"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

type appKeyType string

const appKey appKeyType = "app"

// app holds the services shared by every subcommand.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	prober    *sizeprobe.Prober
}

// loadConfig is a variable so tests can inject configuration.
var loadConfig = config.Load

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		collector: collector,
		prober:    sizeprobe.New(sizeprobe.WithPolicy(cfg.Policy())),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// monitor builds a Monitor reporting to the display selected by the
// --progress flag and to the metrics collector.
func (a *app) monitor(cmd *cobra.Command) (*monitor.Monitor, error) {
	mode, _ := cmd.Flags().GetString("progress")
	var display monitor.Display
	switch mode {
	case "bar":
		display = monitor.NewTerminalDisplay(cmd.ErrOrStderr())
	case "log":
		display = monitor.NewLogDisplay(a.logger, 10*time.Second)
	case "none":
	default:
		return nil, fmt.Errorf("unknown progress mode %q (bar, log or none)", mode)
	}
	return monitor.New(a.prober,
		monitor.WithDisplay(monitor.MultiDisplay{display, monitor.NewMetricsDisplay(a.collector)}),
		monitor.WithMetrics(a.collector),
		monitor.WithLogger(a.logger),
	), nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hens",
		Short: "Helpers for huge-ensemble weather forecasting workflows",
		Long: `hens prepares and observes the local data cache of an ensemble
forecasting workflow. It measures and populates the cache, waits for a
background fill to finish, derives the per-variable noise amplitude vector
and serves cache status over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return fmt.Errorf("configuration: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().String("progress", "bar", "progress display: bar, log or none")

	cmd.AddCommand(
		newSizeCmd(),
		newWatchCmd(),
		newWaitCacheCmd(),
		newFillCmd(),
		newNoiseCmd(),
		newLocationsCmd(),
		newServeCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}
