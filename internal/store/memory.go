package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no samples match a query.
	ErrNotFound = errors.New("no cache samples available")
)

// CacheSample is one observation of the cache size.
type CacheSample struct {
	Timestamp time.Time `json:"timestamp"` // always UTC
	Bytes     int64     `json:"bytes"`
	Expected  int64     `json:"expectedBytes"`
}

// Percent returns how full the cache is relative to Expected, capped at 100.
func (s CacheSample) Percent() float64 {
	if s.Expected <= 0 {
		return 100
	}
	p := 100 * float64(s.Bytes) / float64(s.Expected)
	if p > 100 {
		return 100
	}
	return p
}

// Complete reports whether the sample reached the expected size.
func (s CacheSample) Complete() bool {
	return s.Bytes >= s.Expected
}

// MemoryStore is a concurrency-safe in-memory history of cache samples.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []CacheSample

	// retention configuration
	maxHistory int           // max number of samples kept
	maxAge     time.Duration // optional max age for samples
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save appends a sample and enforces retention. Samples are expected in
// timestamp order.
func (s *MemoryStore) Save(sample CacheSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.samples) > s.maxHistory {
		over := len(s.samples) - s.maxHistory
		s.samples = append([]CacheSample(nil), s.samples[over:]...)
	}

	// Enforce retention by age; the newest sample is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.samples)-1; i++ {
			if !s.samples[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.samples = s.samples[i:]
		}
	}
}

// Latest returns the most recent sample.
func (s *MemoryStore) Latest() (CacheSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return CacheSample{}, ErrNotFound
	}
	return s.samples[len(s.samples)-1], nil
}

// Range returns all samples between from and to (inclusive).
func (s *MemoryStore) Range(from, to time.Time) ([]CacheSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []CacheSample
	for _, sample := range s.samples {
		if !sample.Timestamp.Before(from) && !sample.Timestamp.After(to) {
			result = append(result, sample)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Len returns the number of retained samples.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}
