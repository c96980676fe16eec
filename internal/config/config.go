package config

import (
	"fmt"
	"os"
	"sync"

	"vmetrics/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ScoringConfig is the on-disk form of the scoring rules.
type ScoringConfig struct {
	PointsPerSet      int `yaml:"points_per_set" validate:"required,min=1"`
	DecidingSetPoints int `yaml:"deciding_set_points" validate:"required,min=1"`
	DecidingSet       int `yaml:"deciding_set" validate:"required,min=1"`
	WinMargin         int `yaml:"win_margin" validate:"required,min=1"`
	SetsToWin         int `yaml:"sets_to_win" validate:"required,min=1,ltefield=DecidingSet"`
	// HistoryDepth bounds how many scoring mutations can be undone.
	HistoryDepth int `yaml:"history_depth" validate:"required,min=1,max=100"`
}

var validate = validator.New()

var (
	cfg      *ScoringConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadScoringConfig loads the scoring rules from the given path once per process.
func LoadScoringConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read scoring config: %w", err)
			return
		}
		c, err := ParseScoringConfig(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// ParseScoringConfig decodes and validates a YAML rules document.
func ParseScoringConfig(data []byte) (*ScoringConfig, error) {
	var c ScoringConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scoring config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the field constraints.
func (c *ScoringConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	return nil
}

// Rules converts the config into domain rules.
func (c *ScoringConfig) Rules() domain.Rules {
	return domain.Rules{
		PointsPerSet:      c.PointsPerSet,
		DecidingSetPoints: c.DecidingSetPoints,
		DecidingSet:       c.DecidingSet,
		WinMargin:         c.WinMargin,
		SetsToWin:         c.SetsToWin,
		HistoryDepth:      c.HistoryDepth,
	}
}

// GetScoringConfig returns the loaded configuration, or nil before a successful load.
func GetScoringConfig() *ScoringConfig {
	return cfg
}

// GetRules returns the loaded rules, or indoor defaults if nothing was loaded.
func GetRules() domain.Rules {
	if cfg == nil {
		return domain.DefaultRules()
	}
	return cfg.Rules()
}
