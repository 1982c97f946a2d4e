package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/hens-workflow/internal/fetch"
	"github.com/i474232898/hens-workflow/internal/monitor"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

func newSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size [path...]",
		Short: "Print the total byte size of files and directories",
		Long: `Sums the size of every regular file under the given paths. Missing
paths count as zero. Without arguments the cache directory is measured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			target, err := targetFromArgs(a, args)
			if err != nil {
				return err
			}
			n, err := a.prober.Size(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", n, humanize.IBytes(uint64(n)), target)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var (
		expected    int64
		baseline    int64
		description string
	)
	cmd := &cobra.Command{
		Use:   "watch path...",
		Short: "Wait until paths grow to an expected total size",
		Long: `Polls the combined size of the given paths and reports progress until
they hold --expected bytes. Use --baseline when some of the content was
already present before the writer started.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			m, err := a.monitor(cmd)
			if err != nil {
				return err
			}
			opts := a.cfg.MonitorOptions(description)
			opts.Baseline = baseline
			applyPollFlags(cmd, &opts)

			res, err := m.Watch(cmd.Context(), targetOf(args), expected, opts)
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().Int64Var(&expected, "expected", 0, "expected total size in bytes")
	cmd.Flags().Int64Var(&baseline, "baseline", 0, "bytes present before the write started")
	cmd.Flags().StringVar(&description, "desc", "", "progress label")
	addPollFlags(cmd)
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}

func newWaitCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait-cache",
		Short: "Block until the data cache is fully populated",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := a.cfg.RequireCacheDir()
			if err != nil {
				return err
			}
			m, err := a.monitor(cmd)
			if err != nil {
				return err
			}
			opts := a.cfg.MonitorOptions("")
			applyPollFlags(cmd, &opts)

			res, err := monitor.NewCacheWaiter(m, dir, a.cfg.CacheExpectedBytes, opts).Wait(cmd.Context())
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}
	addPollFlags(cmd)
	return cmd
}

func newFillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill manifest.yaml",
		Short: "Download a manifest into the cache while tracking progress",
		Long: `Downloads every manifest entry that is not already in the cache, with
bounded concurrency, retries and a circuit breaker. Progress is measured on
the cache directory itself, relative to its size when the fill started.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := a.cfg.RequireCacheDir()
			if err != nil {
				return err
			}
			manifest, err := fetch.LoadManifest(args[0])
			if err != nil {
				return err
			}
			m, err := a.monitor(cmd)
			if err != nil {
				return err
			}
			opts := a.cfg.MonitorOptions("Filling cache")
			applyPollFlags(cmd, &opts)

			client := fetch.NewClient(newHTTPClient(a.cfg.HTTPTimeout),
				fetch.WithConcurrency(a.cfg.FetchConcurrency),
				fetch.WithLogger(a.logger),
			)
			report, err := fillAndWatch(cmd.Context(), client, a.prober, m, manifest, dir, opts, a.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d, skipped %d, failed %d (%s)\n",
				report.Downloaded, report.Skipped, report.Failed, humanize.IBytes(uint64(report.Bytes)))
			return err
		},
	}
	addPollFlags(cmd)
	return cmd
}

// fillAndWatch runs the fill and a watch over the cache directory side by
// side. The watch expects the current cache size plus the net growth of the
// pending entries. It ends when the fill returns, whatever the outcome, since
// entries without a declared size can leave the expectation short or long.
func fillAndWatch(ctx context.Context, client *fetch.Client, sizer monitor.Sizer, m *monitor.Monitor, manifest *fetch.Manifest, dir string, opts monitor.Options, logger *zap.Logger) (fetch.FillReport, error) {
	target := sizeprobe.Path(dir)
	baseline, err := sizer.Size(ctx, target)
	if err != nil {
		return fetch.FillReport{}, err
	}
	_, growth := client.Pending(manifest, dir)
	opts.Baseline = baseline

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	type fillResult struct {
		report fetch.FillReport
		err    error
	}
	done := make(chan fillResult, 1)
	go func() {
		report, err := client.Fill(ctx, manifest, dir)
		cancelWatch()
		done <- fillResult{report, err}
	}()

	_, watchErr := m.Watch(watchCtx, target, baseline+max(growth, 0), opts)
	res := <-done
	if res.err != nil {
		return res.report, res.err
	}
	if watchErr != nil && !errors.Is(watchErr, context.Canceled) {
		logger.Warn("cache watch ended early", zap.Error(watchErr))
	}
	return res.report, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("interval", 0, "poll interval (default from HENS_POLL_INTERVAL)")
	cmd.Flags().Duration("max-wait", 0, "give up after this long; 0 waits indefinitely (default from HENS_MAX_WAIT)")
}

func applyPollFlags(cmd *cobra.Command, opts *monitor.Options) {
	if cmd.Flags().Changed("interval") {
		opts.PollInterval, _ = cmd.Flags().GetDuration("interval")
	}
	if cmd.Flags().Changed("max-wait") {
		opts.MaxWait, _ = cmd.Flags().GetDuration("max-wait")
	}
}

func printResult(cmd *cobra.Command, res monitor.Result) {
	if res.Immediate {
		fmt.Fprintf(cmd.OutOrStdout(), "already complete: %s\n", humanize.IBytes(uint64(res.Observed)))
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "complete: %s after %s (%d polls)\n",
		humanize.IBytes(uint64(res.Observed)), res.Elapsed.Round(time.Millisecond), res.Polls)
}

func targetOf(paths []string) sizeprobe.Target {
	if len(paths) == 1 {
		return sizeprobe.Path(paths[0])
	}
	return sizeprobe.Paths(paths...)
}

func targetFromArgs(a *app, args []string) (sizeprobe.Target, error) {
	if len(args) > 0 {
		return targetOf(args), nil
	}
	dir, err := a.cfg.RequireCacheDir()
	if err != nil {
		return nil, err
	}
	return sizeprobe.Path(dir), nil
}
