package monitor

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/i474232898/hens-workflow/internal/logging"
	"github.com/i474232898/hens-workflow/internal/metrics"
)

// Display reports watch progress somewhere a human or a scraper can see it.
type Display interface {
	// Open starts a session sized to total units, with initial units already done.
	Open(desc string, total, initial int64) Bar
	// Complete reports that the target reached its expected size.
	Complete(desc string, observed int64)
}

// Bar is a single progress session. Close is always called, on every exit path.
type Bar interface {
	Add(n int64)
	Close()
}

// TerminalDisplay draws a progress bar on a terminal, redrawing in place when
// the writer is a TTY and printing coarse progress lines otherwise.
type TerminalDisplay struct {
	out         io.Writer
	interactive bool
	width       int
	label       lipgloss.Style
}

// NewTerminalDisplay writes to out, detecting whether it is an interactive terminal.
func NewTerminalDisplay(out io.Writer) *TerminalDisplay {
	if out == nil {
		out = os.Stdout
	}
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &TerminalDisplay{
		out:         out,
		interactive: interactive,
		width:       40,
		label:       lipgloss.NewStyle().Bold(true),
	}
}

// Open implements Display.
func (d *TerminalDisplay) Open(desc string, total, initial int64) Bar {
	b := &terminalBar{
		display: d,
		desc:    desc,
		total:   total,
		current: initial,
		model:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(d.width)),
		step:    -1,
	}
	b.render()
	return b
}

// Complete implements Display.
func (d *TerminalDisplay) Complete(desc string, observed int64) {
	fmt.Fprintf(d.out, "%s complete (%d bytes)\n", d.label.Render(desc), observed)
}

type terminalBar struct {
	display *TerminalDisplay
	desc    string
	total   int64
	current int64
	model   progress.Model
	// last 10% step printed in non-interactive mode
	step int
}

func (b *terminalBar) Add(n int64) {
	if n <= 0 {
		return
	}
	b.current += n
	b.render()
}

func (b *terminalBar) Close() {
	if b.display.interactive {
		fmt.Fprintln(b.display.out)
	}
}

func (b *terminalBar) fraction() float64 {
	if b.total <= 0 {
		return 1
	}
	f := float64(b.current) / float64(b.total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func (b *terminalBar) render() {
	d := b.display
	frac := b.fraction()
	counts := fmt.Sprintf("%s/%s", humanize.Bytes(uint64(max(b.current, 0))), humanize.Bytes(uint64(max(b.total, 0))))

	if d.interactive {
		fmt.Fprintf(d.out, "\r\033[K%s %s %s", d.label.Render(b.desc), b.model.ViewAs(frac), counts)
		return
	}

	step := int(frac * 10)
	if step <= b.step {
		return
	}
	b.step = step
	fmt.Fprintf(d.out, "%s: %3.0f%% %s\n", b.desc, frac*100, counts)
}

// LogDisplay reports progress as structured log lines, at most once per interval.
type LogDisplay struct {
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// NewLogDisplay logs through logger, throttling progress lines to one per interval.
func NewLogDisplay(logger *zap.Logger, interval time.Duration) *LogDisplay {
	return &LogDisplay{
		logger:   logging.OrNop(logger),
		interval: interval,
		now:      time.Now,
	}
}

// Open implements Display.
func (d *LogDisplay) Open(desc string, total, initial int64) Bar {
	d.logger.Info("waiting for target to fill",
		zap.String("desc", desc),
		zap.Int64("expected_bytes", total),
		zap.Int64("initial_bytes", initial),
	)
	return &logBar{display: d, desc: desc, total: total, current: initial, last: d.now()}
}

// Complete implements Display.
func (d *LogDisplay) Complete(desc string, observed int64) {
	d.logger.Info("target complete", zap.String("desc", desc), zap.Int64("observed_bytes", observed))
}

type logBar struct {
	display *LogDisplay
	desc    string
	total   int64
	current int64
	last    time.Time
}

func (b *logBar) Add(n int64) {
	if n <= 0 {
		return
	}
	b.current += n
	now := b.display.now()
	if now.Sub(b.last) < b.display.interval {
		return
	}
	b.last = now
	b.display.logger.Info("progress",
		zap.String("desc", b.desc),
		zap.Int64("bytes", b.current),
		zap.Int64("expected_bytes", b.total),
	)
}

func (b *logBar) Close() {}

// MetricsDisplay mirrors watch progress into Prometheus gauges.
type MetricsDisplay struct {
	collector *metrics.Collector
}

// NewMetricsDisplay wraps an existing collector.
func NewMetricsDisplay(collector *metrics.Collector) *MetricsDisplay {
	return &MetricsDisplay{collector: collector}
}

// Open implements Display.
func (d *MetricsDisplay) Open(desc string, total, initial int64) Bar {
	d.collector.SetExpected(desc, total)
	d.collector.SetProgress(desc, initial)
	return &metricsBar{collector: d.collector, desc: desc, current: initial}
}

// Complete implements Display. Completion counters are recorded by the
// Monitor itself, which knows the elapsed time.
func (d *MetricsDisplay) Complete(string, int64) {}

type metricsBar struct {
	collector *metrics.Collector
	desc      string
	current   int64
}

func (b *metricsBar) Add(n int64) {
	if n <= 0 {
		return
	}
	b.current += n
	b.collector.SetProgress(b.desc, b.current)
}

func (b *metricsBar) Close() {}

// MultiDisplay fans progress out to several displays.
type MultiDisplay []Display

// Open implements Display.
func (m MultiDisplay) Open(desc string, total, initial int64) Bar {
	bars := make(multiBar, 0, len(m))
	for _, d := range m {
		if d != nil {
			bars = append(bars, d.Open(desc, total, initial))
		}
	}
	return bars
}

// Complete implements Display.
func (m MultiDisplay) Complete(desc string, observed int64) {
	for _, d := range m {
		if d != nil {
			d.Complete(desc, observed)
		}
	}
}

type multiBar []Bar

func (m multiBar) Add(n int64) {
	for _, b := range m {
		b.Add(n)
	}
}

func (m multiBar) Close() {
	for _, b := range m {
		b.Close()
	}
}

// nopDisplay is used when a Monitor is built without a display.
type nopDisplay struct{}

func (nopDisplay) Open(string, int64, int64) Bar { return nopBar{} }
func (nopDisplay) Complete(string, int64)        {}

type nopBar struct{}

func (nopBar) Add(int64) {}
func (nopBar) Close()    {}
