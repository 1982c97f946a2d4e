package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/i474232898/hens-workflow/internal/logging"
)

// ErrSizeMismatch is returned when a download does not match its declared size.
var ErrSizeMismatch = errors.New("downloaded size does not match manifest")

const defaultConcurrency = 4

// Client downloads manifest entries into a cache directory.
type Client struct {
	http        *http.Client
	backoff     BackoffConfig
	circuit     *gobreaker.CircuitBreaker
	fs          afero.Fs
	concurrency int
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFs writes through fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(c *Client) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithConcurrency bounds the number of parallel downloads.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithBackoff overrides the retry schedule.
func WithBackoff(b BackoffConfig) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// NewClient creates a Client with retries and a circuit breaker around client.
func NewClient(client *http.Client, opts ...Option) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Client{
		http: client,
		backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		circuit:     newBreaker(),
		fs:          afero.NewOsFs(),
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Download fetches e into cacheDir. Data is streamed into a hidden temporary
// file next to the destination and renamed into place once complete.
func (c *Client) Download(ctx context.Context, e Entry, cacheDir string) (int64, error) {
	dest := filepath.Join(cacheDir, filepath.Clean(e.Path))
	dir := filepath.Dir(dest)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}

	resp, err := c.get(ctx, e.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", e.URL, err)
	}
	defer resp.Body.Close()

	tmp := filepath.Join(dir, "."+filepath.Base(dest)+"."+uuid.NewString()+".part")
	f, err := c.fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && e.Size > 0 && n != e.Size {
		err = fmt.Errorf("%w: %s got %d bytes, want %d", ErrSizeMismatch, e.Path, n, e.Size)
	}
	if err != nil {
		_ = c.fs.Remove(tmp)
		return n, fmt.Errorf("write %s: %w", e.Path, err)
	}
	if err := c.fs.Rename(tmp, dest); err != nil {
		_ = c.fs.Remove(tmp)
		return n, fmt.Errorf("move %s into place: %w", e.Path, err)
	}
	return n, nil
}

// Pending returns the entries not yet present in cacheDir, and by how many
// bytes the cache grows once they are downloaded. A stale file at an entry's
// path is replaced, so its current size counts against the growth.
func (c *Client) Pending(m *Manifest, cacheDir string) ([]Entry, int64) {
	var (
		pending []Entry
		growth  int64
	)
	for _, e := range m.Entries {
		have, ok := c.existing(e, cacheDir)
		if ok && (e.Size == 0 || have == e.Size) {
			continue
		}
		pending = append(pending, e)
		growth += e.Size - have
	}
	return pending, growth
}

// existing returns the size of the regular file at e's path.
func (c *Client) existing(e Entry, cacheDir string) (int64, bool) {
	info, err := c.fs.Stat(filepath.Join(cacheDir, filepath.Clean(e.Path)))
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// FillReport summarizes a Fill run.
type FillReport struct {
	Downloaded int   `json:"downloaded"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// Fill downloads every pending manifest entry into cacheDir, at most
// concurrency at a time. Failures do not stop other downloads; they are
// joined into the returned error.
func (c *Client) Fill(ctx context.Context, m *Manifest, cacheDir string) (FillReport, error) {
	pending, _ := c.Pending(m, cacheDir)
	report := FillReport{Skipped: len(m.Entries) - len(pending)}

	c.logger.Info("filling cache",
		zap.String("cache_dir", cacheDir),
		zap.Int("pending", len(pending)),
		zap.Int("skipped", report.Skipped),
	)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
		sem  = make(chan struct{}, c.concurrency)
	)
	for _, e := range pending {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				report.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", e.Path, ctx.Err()))
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			n, err := c.Download(ctx, e, cacheDir)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("download failed", zap.String("path", e.Path), zap.Error(err))
				report.Failed++
				errs = append(errs, err)
				return
			}
			report.Downloaded++
			report.Bytes += n
		}()
	}
	wg.Wait()

	return report, errors.Join(errs...)
}
