package monitor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/hens-workflow/internal/metrics"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

func TestTerminalDisplayPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf)
	require.False(t, d.interactive)

	bar := d.Open("Waiting for cache", 1000, 0)
	bar.Add(50)  // 5%, same decile as the opening line
	bar.Add(450) // 50%
	bar.Add(500) // 100%
	bar.Close()
	d.Complete("Waiting for cache", 1000)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "0%")
	assert.Contains(t, lines[1], "50%")
	assert.Contains(t, lines[2], "100%")
	assert.Contains(t, lines[3], "complete (1000 bytes)")
}

func TestTerminalDisplayCompletionStartsOnFreshLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf)
	d.interactive = true

	m := New(&scriptedSizer{sizes: []int64{0, 400, 1000}}, WithDisplay(d))
	_, err := m.Watch(context.Background(), sizeprobe.Path("/cache"), 1000, Options{
		Description:  "test",
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	out := buf.String()
	tail := out[strings.LastIndex(out, "\r"):]
	lines := strings.Split(tail, "\n")
	require.Len(t, lines, 3, "%q", tail)
	assert.NotContains(t, lines[0], "complete")
	assert.Contains(t, lines[1], "complete (1000 bytes)")
	assert.Empty(t, lines[2])
}

func TestLogDisplayThrottlesProgress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDisplay(zap.New(core), time.Minute)

	clock := time.Unix(0, 0)
	d.now = func() time.Time { return clock }

	bar := d.Open("cache", 100, 0)
	bar.Add(10)
	clock = clock.Add(2 * time.Minute)
	bar.Add(10)
	bar.Close()
	d.Complete("cache", 100)

	assert.Equal(t, 1, logs.FilterMessage("waiting for target to fill").Len())
	progress := logs.FilterMessage("progress").All()
	require.Len(t, progress, 1)
	assert.Equal(t, int64(20), progress[0].ContextMap()["bytes"])
	assert.Equal(t, 1, logs.FilterMessage("target complete").Len())
}

func TestMultiDisplayFansOut(t *testing.T) {
	a, b := &recordingDisplay{}, &recordingDisplay{}
	d := MultiDisplay{a, nil, b}

	bar := d.Open("x", 10, 2)
	bar.Add(8)
	bar.Close()
	d.Complete("x", 10)

	for _, r := range []*recordingDisplay{a, b} {
		assert.Equal(t, 1, r.opens)
		assert.Equal(t, []int64{8}, r.adds)
		assert.Equal(t, 1, r.closes)
		assert.Equal(t, []int64{10}, r.completes)
	}
}

func TestMetricsDisplayTracksProgress(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	bar := NewMetricsDisplay(c).Open("cache", 100, 10)
	bar.Add(15)
	bar.Close()

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetGauge() != nil {
				values[f.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 25.0, values["hens_monitor_progress_bytes"])
	assert.Equal(t, 100.0, values["hens_monitor_expected_progress_bytes"])
}
