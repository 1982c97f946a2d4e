package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/hens-workflow/internal/api/http"
	"github.com/i474232898/hens-workflow/internal/noise"
	"github.com/i474232898/hens-workflow/internal/scheduler"
	"github.com/i474232898/hens-workflow/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sample the cache periodically and serve its status over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg

	// In-memory sample history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	var skill *noise.SkillTable
	if cfg.SkillPath != "" {
		table, err := noise.LoadSkillTable(cfg.SkillPath)
		if err != nil {
			return err
		}
		skill = table
	} else {
		a.logger.Info("no skill table configured; noise endpoint disabled")
	}

	sched := scheduler.New(cfg.CacheDir, cfg.CacheExpectedBytes, cfg.SampleInterval, a.prober, memStore, a.collector, a.logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := httpapi.NewApp()
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Samples: memStore,
		Skill:   skill,
		Noise: httpapi.NoiseDefaults{
			Variables:     cfg.ModelVariables,
			LeadTime:      cfg.LeadTime,
			Amplification: cfg.NoiseAmplification,
			Perturbed:     cfg.PerturbedVariables,
			PerturbedSet:  cfg.PerturbedSet,
		},
		Gatherer: a.registry,
	})

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}
