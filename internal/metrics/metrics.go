// Package metrics owns the Prometheus collectors for cache monitoring.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Completion results recorded by ObserveCompletion.
const (
	ResultComplete = "complete"
	ResultTimeout  = "timeout"
	ResultCanceled = "canceled"
	ResultError    = "error"
)

// Collector groups the gauges and counters shared by the progress monitor and
// the periodic cache sampler.
type Collector struct {
	progressBytes *prometheus.GaugeVec
	expectedBytes *prometheus.GaugeVec
	observedBytes *prometheus.GaugeVec
	completions   *prometheus.CounterVec
	watchDuration *prometheus.HistogramVec

	cacheBytes    prometheus.Gauge
	cacheExpected prometheus.Gauge
	cacheSamples  prometheus.Counter
}

// New registers the collectors against reg (the default registerer if nil).
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		progressBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hens_monitor_progress_bytes",
			Help: "Bytes written since the watch baseline.",
		}, []string{"watch"}),
		expectedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hens_monitor_expected_progress_bytes",
			Help: "Bytes the watch expects to be written past its baseline.",
		}, []string{"watch"}),
		observedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hens_monitor_observed_bytes",
			Help: "Total target size observed when the watch completed.",
		}, []string{"watch"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hens_monitor_watches_total",
			Help: "Finished watches partitioned by result.",
		}, []string{"watch", "result"}),
		watchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hens_monitor_watch_duration_seconds",
			Help:    "Wall time spent waiting for a target to fill.",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"watch", "result"}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hens_cache_bytes",
			Help: "Latest sampled size of the data cache.",
		}),
		cacheExpected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hens_cache_expected_bytes",
			Help: "Size the data cache is expected to reach once populated.",
		}),
		cacheSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hens_cache_samples_total",
			Help: "Cache size samples taken by the scheduler.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.progressBytes,
		c.expectedBytes,
		c.observedBytes,
		c.completions,
		c.watchDuration,
		c.cacheBytes,
		c.cacheExpected,
		c.cacheSamples,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return c, nil
}

// SetExpected records the expected progress of a watch.
func (c *Collector) SetExpected(watch string, bytes int64) {
	c.expectedBytes.WithLabelValues(watch).Set(float64(bytes))
}

// SetProgress records the progress of a watch.
func (c *Collector) SetProgress(watch string, bytes int64) {
	c.progressBytes.WithLabelValues(watch).Set(float64(bytes))
}

// ObserveCompletion records how a watch ended.
func (c *Collector) ObserveCompletion(watch, result string, observed int64, dur time.Duration) {
	if result == ResultComplete {
		c.observedBytes.WithLabelValues(watch).Set(float64(observed))
	}
	c.completions.WithLabelValues(watch, result).Inc()
	if dur > 0 {
		c.watchDuration.WithLabelValues(watch, result).Observe(dur.Seconds())
	}
}

// ObserveCacheSample records a scheduler sample of the cache size.
func (c *Collector) ObserveCacheSample(bytes, expected int64) {
	c.cacheBytes.Set(float64(bytes))
	c.cacheExpected.Set(float64(expected))
	c.cacheSamples.Inc()
}
