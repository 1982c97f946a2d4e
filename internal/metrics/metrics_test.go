package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsWatchAndSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.SetExpected("cache", 1000)
	c.SetProgress("cache", 250)
	c.ObserveCompletion("cache", ResultComplete, 1500, 2*time.Second)
	c.ObserveCacheSample(42, 100)
	c.ObserveCacheSample(43, 100)

	assert.Equal(t, 1000.0, testutil.ToFloat64(c.expectedBytes.WithLabelValues("cache")))
	assert.Equal(t, 250.0, testutil.ToFloat64(c.progressBytes.WithLabelValues("cache")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.observedBytes.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.completions.WithLabelValues("cache", ResultComplete)))
	assert.Equal(t, 43.0, testutil.ToFloat64(c.cacheBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheSamples))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
