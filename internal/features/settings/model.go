package settings

import (
	"time"

	"go-reports/internal/config"
)

type SettingsType string

const SettingsTypeEngine SettingsType = "engine"

type Settings struct {
	Type      SettingsType     `json:"type" bson:"type"`
	Engine    *EngineOverrides `json:"engine,omitempty" bson:"engine,omitempty"`
	UpdatedAt time.Time        `json:"updated_at" bson:"updated_at"`
}

// EngineOverrides replaces the environment defaults of the fields that are set.
type EngineOverrides struct {
	AutomaticIntervalBuckets *int    `json:"automaticIntervalBuckets,omitempty" bson:"automaticIntervalBuckets,omitempty"`
	MaxBuckets               *int    `json:"maxBuckets,omitempty" bson:"maxBuckets,omitempty"`
	CombinedConcurrency      *int    `json:"combinedConcurrency,omitempty" bson:"combinedConcurrency,omitempty"`
	QueryTimeout             *string `json:"queryTimeout,omitempty" bson:"queryTimeout,omitempty"`
	RawDefaultLimit          *int    `json:"rawDefaultLimit,omitempty" bson:"rawDefaultLimit,omitempty"`
	RawMaxLimit              *int    `json:"rawMaxLimit,omitempty" bson:"rawMaxLimit,omitempty"`
	Timezone                 *string `json:"timezone,omitempty" bson:"timezone,omitempty"`
}

// Apply returns defaults with the overrides merged in, validated.
func (o *EngineOverrides) Apply(defaults config.EngineSettings) (*config.EngineSettings, error) {
	s := defaults
	if o != nil {
		setInt(&s.AutomaticIntervalBuckets, o.AutomaticIntervalBuckets)
		setInt(&s.MaxBuckets, o.MaxBuckets)
		setInt(&s.CombinedConcurrency, o.CombinedConcurrency)
		setInt(&s.RawDefaultLimit, o.RawDefaultLimit)
		setInt(&s.RawMaxLimit, o.RawMaxLimit)
		if o.Timezone != nil {
			s.Timezone = *o.Timezone
		}
		if o.QueryTimeout != nil {
			d, err := time.ParseDuration(*o.QueryTimeout)
			if err != nil {
				return nil, err
			}
			s.QueryTimeout = d
		}
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// EngineSettingsResponse shows the stored overrides next to the settings in effect.
type EngineSettingsResponse struct {
	Overrides EngineOverrides        `json:"overrides"`
	Effective *config.EngineSettings `json:"effective"`
}
