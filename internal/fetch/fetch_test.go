package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() BackoffConfig {
	return BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func payloadServer(t *testing.T, files map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("x", size)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadWritesFileAtomically(t *testing.T) {
	srv := payloadServer(t, map[string]int{"/gfs/t2m.grib": 128})
	fsys := afero.NewMemMapFs()
	c := NewClient(srv.Client(), WithFs(fsys), WithBackoff(fastBackoff()))

	n, err := c.Download(context.Background(), Entry{URL: srv.URL + "/gfs/t2m.grib", Path: "gfs/t2m.grib", Size: 128}, "/cache")
	require.NoError(t, err)
	assert.Equal(t, int64(128), n)

	info, err := fsys.Stat("/cache/gfs/t2m.grib")
	require.NoError(t, err)
	assert.Equal(t, int64(128), info.Size())

	names, err := afero.Glob(fsys, "/cache/gfs/.*.part")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDownloadRejectsSizeMismatch(t *testing.T) {
	srv := payloadServer(t, map[string]int{"/a": 10})
	fsys := afero.NewMemMapFs()
	c := NewClient(srv.Client(), WithFs(fsys), WithBackoff(fastBackoff()))

	_, err := c.Download(context.Background(), Entry{URL: srv.URL + "/a", Path: "a", Size: 11}, "/cache")
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = fsys.Stat("/cache/a")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithFs(afero.NewMemMapFs()), WithBackoff(fastBackoff()))
	n, err := c.Download(context.Background(), Entry{URL: srv.URL, Path: "ok.txt"}, "/cache")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithFs(afero.NewMemMapFs()), WithBackoff(fastBackoff()))
	_, err := c.Download(context.Background(), Entry{URL: srv.URL, Path: "missing"}, "/cache")
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFillSkipsPresentEntriesAndReportsFailures(t *testing.T) {
	srv := payloadServer(t, map[string]int{"/a": 10, "/b": 20})
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cache/a.bin", make([]byte, 10), 0o644))

	m := &Manifest{Entries: []Entry{
		{URL: srv.URL + "/a", Path: "a.bin", Size: 10},
		{URL: srv.URL + "/b", Path: "sub/b.bin", Size: 20},
		{URL: srv.URL + "/gone", Path: "c.bin", Size: 5},
	}}
	c := NewClient(srv.Client(), WithFs(fsys), WithBackoff(fastBackoff()), WithConcurrency(2))

	pending, bytes := c.Pending(m, "/cache")
	assert.Len(t, pending, 2)
	assert.Equal(t, int64(25), bytes)

	report, err := c.Fill(context.Background(), m, "/cache")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, FillReport{Downloaded: 1, Skipped: 1, Failed: 1, Bytes: 20}, report)

	info, err := fsys.Stat(filepath.Join("/cache", "sub", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), info.Size())
}

func TestPendingCountsStaleFilesAgainstGrowth(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cache/a.bin", make([]byte, 40), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/cache/b.bin", make([]byte, 90), 0o644))

	m := &Manifest{Entries: []Entry{
		{URL: "https://data.example.org/a", Path: "a.bin", Size: 100},
		{URL: "https://data.example.org/b", Path: "b.bin", Size: 50},
		{URL: "https://data.example.org/c", Path: "c.bin", Size: 30},
	}}
	c := NewClient(nil, WithFs(fsys))

	pending, growth := c.Pending(m, "/cache")
	assert.Len(t, pending, 3)
	// a grows by 60, b shrinks by 40, c is new.
	assert.Equal(t, int64(60-40+30), growth)
}

func TestMissingFilesDoNotOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), WithFs(afero.NewMemMapFs()), WithBackoff(fastBackoff()))
	for i := 0; i < 10; i++ {
		_, err := c.Download(context.Background(), Entry{URL: srv.URL + "/missing", Path: "missing"}, "/cache")
		require.ErrorIs(t, err, errRejected)
	}

	n, err := c.Download(context.Background(), Entry{URL: srv.URL + "/ok", Path: "ok.txt"}, "/cache")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBackoffDelay(t *testing.T) {
	b := BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 400*time.Millisecond, b.delay(2))
	assert.Equal(t, time.Second, b.delay(5))
	assert.Equal(t, time.Second, b.delay(80))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - url: https://data.example.org/gfs/2024070400/t2m.grib2
    path: gfs/2024070400/t2m.grib2
    size: 1048576
  - url: https://data.example.org/era5/z500.nc
    path: era5/z500.nc
    size: 2048
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 2)
	assert.Equal(t, int64(1048576+2048), m.ExpectedBytes())
}

func TestManifestValidation(t *testing.T) {
	cases := map[string]Manifest{
		"empty":     {},
		"bad url":   {Entries: []Entry{{URL: "not a url", Path: "a"}}},
		"no path":   {Entries: []Entry{{URL: "https://x.org/a"}}},
		"escape":    {Entries: []Entry{{URL: "https://x.org/a", Path: "../etc/passwd"}}},
		"absolute":  {Entries: []Entry{{URL: "https://x.org/a", Path: "/etc/passwd"}}},
		"duplicate": {Entries: []Entry{{URL: "https://x.org/a", Path: "a"}, {URL: "https://x.org/b", Path: "./a"}}},
		"negative":  {Entries: []Entry{{URL: "https://x.org/a", Path: "a", Size: -1}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, m.Validate())
		})
	}
}
