package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/monitor"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(CacheEnv, "")
	t.Chdir(t.TempDir()) // no .env file

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, monitor.DefaultCacheExpectedBytes, cfg.CacheExpectedBytes)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.MaxWait)
	assert.Equal(t, sizeprobe.PolicyIgnore, cfg.Policy())
	assert.Equal(t, 48, cfg.LeadTime)
	assert.Equal(t, 1.0, cfg.NoiseAmplification)
	assert.False(t, cfg.PerturbedSet)
	assert.Len(t, cfg.ModelVariables, 73)
	assert.Equal(t, "8080", cfg.Port)

	_, err = cfg.RequireCacheDir()
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(CacheEnv, "/data/cache")
	t.Setenv("HENS_CACHE_EXPECTED_BYTES", "2048")
	t.Setenv("HENS_POLL_INTERVAL", "250ms")
	t.Setenv("HENS_MAX_WAIT", "2h")
	t.Setenv("HENS_IO_POLICY", "fail")
	t.Setenv("HENS_PERTURBED_VARIABLES", "t2m, z500")
	t.Setenv("HENS_MODEL_VARIABLES", "t2m,u10m,z500")
	t.Setenv("HENS_NOISE_AMPLIFICATION", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	dir, err := cfg.RequireCacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/data/cache", dir)
	assert.Equal(t, int64(2048), cfg.CacheExpectedBytes)
	assert.Equal(t, sizeprobe.PolicyFailFast, cfg.Policy())
	assert.True(t, cfg.PerturbedSet)
	assert.Equal(t, []string{"t2m", "z500"}, cfg.PerturbedVariables)
	assert.Equal(t, []string{"t2m", "u10m", "z500"}, cfg.ModelVariables)
	assert.Equal(t, 2.5, cfg.NoiseAmplification)

	opts := cfg.MonitorOptions("Waiting for cache")
	assert.Equal(t, 250*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 2*time.Hour, opts.MaxWait)
}

func TestLoadEmptyPerturbedListMeansNone(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HENS_PERTURBED_VARIABLES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.PerturbedSet)
	assert.Empty(t, cfg.PerturbedVariables)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HENS_IO_POLICY":            "retry",
		"HENS_POLL_INTERVAL":        "soon",
		"HENS_CACHE_EXPECTED_BYTES": "lots",
		"HENS_NOISE_AMPLIFICATION":  "x2",
		"PORT":                      "http",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
