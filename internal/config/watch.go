package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Watch describes what the scheduled jobs poll and how often. The station
// and area lists are injected here instead of living inside job code so the
// jobs stay parameterizable and testable.
type Watch struct {
	// Stations are the "active" station ids the arrival job fans out over.
	Stations []string `yaml:"stations" validate:"required,min=1,dive,required"`
	// Areas are the master-data search terms the station job walks.
	Areas []string `yaml:"areas" validate:"required,min=1,dive,required"`

	PositionInterval time.Duration `yaml:"position_interval" validate:"required,gt=0"`
	PositionDelay    time.Duration `yaml:"position_delay" validate:"gte=0"`
	ArrivalInterval  time.Duration `yaml:"arrival_interval" validate:"required,gt=0"`
	ArrivalDelay     time.Duration `yaml:"arrival_delay" validate:"gte=0"`
	StationInterval  time.Duration `yaml:"station_interval" validate:"required,gt=0"`
	StationDelay     time.Duration `yaml:"station_delay" validate:"gte=0"`
	HealthInterval   time.Duration `yaml:"health_interval" validate:"required,gt=0"`

	// AreaPause is the deliberate wait between sequential area syncs,
	// keeping the master-data job inside upstream rate limits.
	AreaPause time.Duration `yaml:"area_pause" validate:"gte=0"`
	// ArrivalRetention bounds how long superseded predictions survive.
	ArrivalRetention time.Duration `yaml:"arrival_retention" validate:"gt=0"`
}

// DefaultWatch returns the production cadences and the built-in watch set.
func DefaultWatch() Watch {
	return Watch{
		Stations:         []string{"23001", "23002", "23003", "23004"},
		Areas:            []string{"강남", "시청", "역삼", "광화문"},
		PositionInterval: 30 * time.Second,
		PositionDelay:    10 * time.Second,
		ArrivalInterval:  60 * time.Second,
		ArrivalDelay:     15 * time.Second,
		StationInterval:  time.Hour,
		StationDelay:     5 * time.Second,
		HealthInterval:   5 * time.Minute,
		AreaPause:        time.Second,
		ArrivalRetention: 6 * time.Hour,
	}
}

// LoadWatch returns the defaults overlaid with the yaml file at path, when
// path is non-empty. The merged result is validated.
func LoadWatch(path string) (Watch, error) {
	cfg := DefaultWatch()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("watch config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("watch config: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("watch config: %w", err)
	}
	return cfg, nil
}
