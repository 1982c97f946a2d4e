// Package fetch populates the local data cache from remote sources. It is
// the producer side of the cache fill that the monitor package observes.
package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Entry is one file to place in the cache.
type Entry struct {
	URL string `yaml:"url" validate:"required,url"`
	// Path is relative to the cache root.
	Path string `yaml:"path" validate:"required"`
	// Size is the expected size in bytes; zero means unknown.
	Size int64 `yaml:"size" validate:"gte=0"`
}

// Manifest lists everything a populated cache must contain.
type Manifest struct {
	Entries []Entry `yaml:"entries" validate:"required,min=1,dive"`
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and rejects paths escaping the cache root.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	seen := make(map[string]struct{}, len(m.Entries))
	for i, e := range m.Entries {
		clean := filepath.Clean(e.Path)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("invalid manifest: entry %d path %q escapes the cache root", i, e.Path)
		}
		if _, dup := seen[clean]; dup {
			return fmt.Errorf("invalid manifest: duplicate path %q", e.Path)
		}
		seen[clean] = struct{}{}
	}
	return nil
}

// ExpectedBytes sums the declared entry sizes.
func (m *Manifest) ExpectedBytes() int64 {
	var total int64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}
