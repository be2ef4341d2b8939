package config

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EngineSettings are the process-wide limits of report evaluation. A snapshot is read once
// at the start of every evaluation and never changes while it runs.
type EngineSettings struct {
	AutomaticIntervalBuckets int           `json:"automaticIntervalBuckets" bson:"automaticIntervalBuckets"`
	MaxBuckets               int           `json:"maxBuckets" bson:"maxBuckets"`
	CombinedConcurrency      int           `json:"combinedConcurrency" bson:"combinedConcurrency"`
	QueryTimeout             time.Duration `json:"queryTimeout" bson:"queryTimeout"`
	RawDefaultLimit          int           `json:"rawDefaultLimit" bson:"rawDefaultLimit"`
	RawMaxLimit              int           `json:"rawMaxLimit" bson:"rawMaxLimit"`
	Timezone                 string        `json:"timezone" bson:"timezone"`

	location *time.Location
}

// Normalize checks the limits and loads the timezone.
func (s *EngineSettings) Normalize() error {
	switch {
	case s.AutomaticIntervalBuckets <= 0:
		return fmt.Errorf("automaticIntervalBuckets must be positive, got %d", s.AutomaticIntervalBuckets)
	case s.MaxBuckets <= 0:
		return fmt.Errorf("maxBuckets must be positive, got %d", s.MaxBuckets)
	case s.CombinedConcurrency <= 0:
		return fmt.Errorf("combinedConcurrency must be positive, got %d", s.CombinedConcurrency)
	case s.QueryTimeout <= 0:
		return fmt.Errorf("queryTimeout must be positive, got %s", s.QueryTimeout)
	case s.RawDefaultLimit <= 0 || s.RawMaxLimit < s.RawDefaultLimit:
		return fmt.Errorf("raw limits must satisfy 0 < default <= max, got %d and %d", s.RawDefaultLimit, s.RawMaxLimit)
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	s.location = loc
	return nil
}

// Same reports whether s and o hold the same values.
func (s *EngineSettings) Same(o *EngineSettings) bool {
	a, b := *s, *o
	a.location, b.location = nil, nil
	return a == b
}

// Location returns the timezone date buckets are computed in.
func (s *EngineSettings) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// SettingsHolder publishes engine settings to concurrent evaluations.
type SettingsHolder struct {
	current atomic.Pointer[EngineSettings]
}

func NewSettingsHolder(cfg *Config) *SettingsHolder {
	h := &SettingsHolder{}
	s := cfg.Engine
	h.current.Store(&s)
	return h
}

func (h *SettingsHolder) Load() *EngineSettings {
	return h.current.Load()
}

// Store replaces the current settings. Callers must not modify s afterwards.
func (h *SettingsHolder) Store(s *EngineSettings) {
	h.current.Store(s)
}
