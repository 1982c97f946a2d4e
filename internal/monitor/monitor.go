// Package monitor tracks the fill progress of a filesystem target written by
// some other process. It polls the target's size at a fixed interval and
// reports incremental progress until the expected size is reached, the
// caller cancels, or an optional maximum wait elapses.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/logging"
	"github.com/i474232898/hens-workflow/internal/metrics"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

// ErrTimeout is returned when MaxWait elapses before the target is full.
var ErrTimeout = errors.New("expected size not reached before max wait")

const (
	// DefaultPollInterval is used when Options.PollInterval is not set.
	DefaultPollInterval = time.Second
	defaultDescription  = "Processing"
)

// Sizer reports the current byte size of a target. *sizeprobe.Prober satisfies it.
type Sizer interface {
	Size(ctx context.Context, target sizeprobe.Target) (int64, error)
}

// Options tunes a single Watch call.
type Options struct {
	// Baseline is the number of bytes already present before the write started.
	Baseline int64
	// Description labels the progress display.
	Description string
	// PollInterval is the sleep between size checks.
	PollInterval time.Duration
	// MaxWait bounds the whole call; zero waits indefinitely.
	MaxWait time.Duration
}

// Result summarizes a finished watch.
type Result struct {
	// Observed is the last observed total size of the target.
	Observed int64
	// Progress is Observed minus the baseline, never negative.
	Progress int64
	// Polls counts size probes, including the initial check.
	Polls int
	Elapsed time.Duration
	// Immediate is set when the target was already complete at call time.
	Immediate bool
}

// Monitor watches targets fill up.
type Monitor struct {
	sizer   Sizer
	display Display
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithDisplay sets where progress is reported.
func WithDisplay(d Display) Option {
	return func(m *Monitor) {
		if d != nil {
			m.display = d
		}
	}
}

// WithMetrics records watch outcomes in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Monitor) {
		m.metrics = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		m.logger = logging.OrNop(logger)
	}
}

// New creates a Monitor measuring targets with sizer.
func New(sizer Sizer, opts ...Option) *Monitor {
	m := &Monitor{
		sizer:   sizer,
		display: nopDisplay{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watch blocks until target reaches expectedTotal bytes.
//
// Progress is measured relative to opts.Baseline on both the initial check and
// the polling loop. A shrinking target never moves the display backwards.
func (m *Monitor) Watch(ctx context.Context, target sizeprobe.Target, expectedTotal int64, opts Options) (Result, error) {
	if target == nil {
		return Result{}, fmt.Errorf("%w: no target to watch", common.ErrConfiguration)
	}
	if opts.Baseline < 0 || expectedTotal < opts.Baseline {
		return Result{}, fmt.Errorf("%w: expected total %d must be >= baseline %d >= 0",
			common.ErrConfiguration, expectedTotal, opts.Baseline)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	desc := opts.Description
	if desc == "" {
		desc = defaultDescription
	}
	if opts.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MaxWait)
		defer cancel()
	}

	logger := m.logger.With(
		zap.String("watch_id", uuid.NewString()),
		zap.String("desc", desc),
		zap.Stringer("target", target),
	)
	start := m.now()
	expectedProgress := expectedTotal - opts.Baseline

	var (
		res Result
		bar Bar
	)
	// The bar is closed before completion is reported, so the final line
	// does not land on an unterminated progress line.
	closeBar := func() {
		if bar != nil {
			bar.Close()
			bar = nil
		}
	}
	defer closeBar()

	finish := func(observed int64, err error) (Result, error) {
		closeBar()
		res.Observed = observed
		res.Progress = max(observed-opts.Baseline, 0)
		res.Elapsed = m.now().Sub(start)
		m.record(desc, observed, res.Elapsed, err, opts)
		if err != nil {
			return res, m.wrap(err, opts, observed, expectedTotal)
		}
		m.display.Complete(desc, observed)
		logger.Info("target complete",
			zap.Int64("observed_bytes", observed),
			zap.Int("polls", res.Polls),
			zap.Duration("elapsed", res.Elapsed),
		)
		return res, nil
	}

	observed, err := m.sizer.Size(ctx, target)
	if err != nil {
		return finish(0, err)
	}
	res.Polls++
	current := observed - opts.Baseline
	if current >= expectedProgress {
		res.Immediate = true
		return finish(observed, nil)
	}

	previous := max(current, 0)
	shown := previous
	bar = m.display.Open(desc, expectedProgress, previous)

	logger.Debug("polling target",
		zap.Int64("expected_bytes", expectedTotal),
		zap.Int64("baseline_bytes", opts.Baseline),
		zap.Duration("interval", opts.PollInterval),
	)

	for {
		observed, err = m.sizer.Size(ctx, target)
		if err != nil {
			return finish(observed, err)
		}
		res.Polls++

		current = observed - opts.Baseline
		if delta := current - previous; delta > 0 {
			bar.Add(delta)
			shown += delta
			previous = current
		}

		if current >= expectedProgress {
			if shown < expectedProgress {
				bar.Add(expectedProgress - shown)
			}
			return finish(observed, nil)
		}

		if err := sleep(ctx, opts.PollInterval); err != nil {
			return finish(observed, err)
		}
	}
}

func (m *Monitor) wrap(err error, opts Options, observed, expected int64) error {
	if opts.MaxWait > 0 && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (observed %d of %d bytes): %w", ErrTimeout, opts.MaxWait, observed, expected, err)
	}
	return err
}

func (m *Monitor) record(desc string, observed int64, elapsed time.Duration, err error, opts Options) {
	result := metrics.ResultComplete
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && opts.MaxWait > 0:
		result = metrics.ResultTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = metrics.ResultCanceled
	default:
		result = metrics.ResultError
	}
	if result != metrics.ResultComplete {
		m.logger.Warn("watch stopped before completion",
			zap.String("desc", desc),
			zap.String("result", result),
			zap.Int64("observed_bytes", observed),
			zap.Error(err),
		)
	}
	if m.metrics != nil {
		m.metrics.ObserveCompletion(desc, result, observed, elapsed)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
