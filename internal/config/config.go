package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/hens-workflow/internal/common"
	"github.com/i474232898/hens-workflow/internal/monitor"
	"github.com/i474232898/hens-workflow/internal/sizeprobe"
	"github.com/i474232898/hens-workflow/internal/weather"
)

// CacheEnv names the environment variable holding the data cache root.
const CacheEnv = "EARTH2STUDIO_CACHE"

var validate = validator.New()

type AppConfig struct {
	// CacheDir is the root of the local data cache. Empty when unset.
	CacheDir           string
	CacheExpectedBytes int64 `validate:"gt=0"`

	// Monitor polling.
	PollInterval time.Duration `validate:"gt=0"`
	MaxWait      time.Duration `validate:"gte=0"` // 0 = wait indefinitely
	IOPolicy     string        `validate:"oneof=ignore fail"`

	// Noise vector.
	SkillPath          string
	LeadTime           int `validate:"gte=0"`
	NoiseAmplification float64
	PerturbedVariables []string
	// PerturbedSet distinguishes "perturb nothing" from "perturb everything".
	PerturbedSet   bool
	ModelVariables []string `validate:"required,min=1"`

	// Cache sampler and its in-memory history.
	SampleInterval  time.Duration `validate:"gt=0"`
	StoreMaxHistory int           // max number of samples (0 = unlimited)
	StoreMaxAge     time.Duration // max age of samples (0 = unlimited)

	HTTPTimeout      time.Duration `validate:"gt=0"`
	FetchConcurrency int           `validate:"gt=0"`

	LogDevelopment bool
	Port           string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.CacheDir = os.Getenv(CacheEnv)
	if cfg.CacheExpectedBytes, err = getenvInt64("HENS_CACHE_EXPECTED_BYTES", monitor.DefaultCacheExpectedBytes); err != nil {
		return nil, err
	}

	if cfg.PollInterval, err = getenvDuration("HENS_POLL_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.MaxWait, err = getenvDuration("HENS_MAX_WAIT", "0s"); err != nil {
		return nil, err
	}
	cfg.IOPolicy = getenvDefault("HENS_IO_POLICY", "ignore")

	cfg.SkillPath = os.Getenv("HENS_SKILL_PATH")
	cfg.LeadTime = getenvInt("HENS_LEAD_TIME", 48)
	amp := getenvDefault("HENS_NOISE_AMPLIFICATION", "1.0")
	if cfg.NoiseAmplification, err = strconv.ParseFloat(amp, 64); err != nil {
		return nil, fmt.Errorf("invalid HENS_NOISE_AMPLIFICATION: %w", err)
	}
	if v, ok := os.LookupEnv("HENS_PERTURBED_VARIABLES"); ok {
		cfg.PerturbedSet = true
		cfg.PerturbedVariables = common.SplitList(v)
	}
	cfg.ModelVariables = common.SplitList(os.Getenv("HENS_MODEL_VARIABLES"))
	if len(cfg.ModelVariables) == 0 {
		cfg.ModelVariables = weather.SFNOVariables()
	}

	if cfg.SampleInterval, err = getenvDuration("HENS_SAMPLE_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 1440) // a day at one sample per minute
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout, err = getenvDuration("HENS_HTTP_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	cfg.FetchConcurrency = getenvInt("HENS_FETCH_CONCURRENCY", 4)

	cfg.LogDevelopment = getenvBool("HENS_LOG_DEV", false)
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return cfg, nil
}

// RequireCacheDir returns the cache root, or ErrConfiguration when it is unset.
func (c *AppConfig) RequireCacheDir() (string, error) {
	if c.CacheDir == "" {
		return "", fmt.Errorf("%w: %s is not set", common.ErrConfiguration, CacheEnv)
	}
	return c.CacheDir, nil
}

// Policy returns the parsed size probe error policy.
func (c *AppConfig) Policy() sizeprobe.Policy {
	p, err := sizeprobe.ParsePolicy(c.IOPolicy)
	if err != nil {
		// IOPolicy is validated on Load.
		return sizeprobe.PolicyIgnore
	}
	return p
}

// MonitorOptions returns the polling options configured for watches.
func (c *AppConfig) MonitorOptions(desc string) monitor.Options {
	return monitor.Options{
		Description:  desc,
		PollInterval: c.PollInterval,
		MaxWait:      c.MaxWait,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
