package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/hens-workflow/internal/logging"
	"github.com/i474232898/hens-workflow/internal/metrics"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
	"github.com/i474232898/hens-workflow/internal/store"
)

const defaultInterval = time.Minute

// Sizer reports the current byte size of a target.
type Sizer interface {
	Size(ctx context.Context, target sizeprobe.Target) (int64, error)
}

// SampleSink receives cache samples.
type SampleSink interface {
	Save(sample store.CacheSample)
}

// Scheduler periodically samples the size of the cache directory.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sizer     Sizer
	sink      SampleSink
	metrics   *metrics.Collector
	logger    *zap.Logger

	cacheDir string
	expected int64
	interval time.Duration
	timeout  time.Duration
}

// New creates a new Scheduler. collector may be nil.
func New(cacheDir string, expected int64, interval time.Duration, sizer Sizer, sink SampleSink, collector *metrics.Collector, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sizer:     sizer,
		sink:      sink,
		metrics:   collector,
		logger:    logging.OrNop(logger),
		cacheDir:  cacheDir,
		expected:  expected,
		interval:  interval,
		timeout:   interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cacheDir == "" {
		s.logger.Info("scheduler: no cache directory configured; nothing to sample")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.SampleOnce(ctx); err != nil {
			s.logger.Warn("scheduler: cache sample failed", zap.String("cache_dir", s.cacheDir), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// SampleOnce probes the cache once and records the result.
func (s *Scheduler) SampleOnce(ctx context.Context) (store.CacheSample, error) {
	bytes, err := s.sizer.Size(ctx, sizeprobe.Path(s.cacheDir))
	if err != nil {
		return store.CacheSample{}, err
	}
	sample := store.CacheSample{
		Timestamp: time.Now().UTC(),
		Bytes:     bytes,
		Expected:  s.expected,
	}
	s.sink.Save(sample)
	if s.metrics != nil {
		s.metrics.ObserveCacheSample(bytes, s.expected)
	}
	s.logger.Debug("scheduler: cache sampled",
		zap.Int64("bytes", bytes),
		zap.Float64("percent", sample.Percent()),
	)
	return sample, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
