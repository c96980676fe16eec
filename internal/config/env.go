package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds deployment settings read from the Nakama runtime env or the process env.
type Env struct {
	RulesPath         string        `env:"VMETRICS_RULES_PATH" envDefault:"data/scoring_rules.yaml"`
	ScorerSecret      string        `env:"VMETRICS_SCORER_SECRET"`
	ScorerIssuer      string        `env:"VMETRICS_SCORER_ISSUER" envDefault:"vmetrics"`
	ScorerTokenTTL    time.Duration `env:"VMETRICS_SCORER_TOKEN_TTL" envDefault:"12h"`
	StorageCollection string        `env:"VMETRICS_STORAGE_COLLECTION" envDefault:"vmetrics"`
	TickRate          int           `env:"VMETRICS_TICK_RATE" envDefault:"5"`
	DataDir           string        `env:"VMETRICS_DATA_DIR" envDefault:".vmetrics"`
	// IdleTimeout terminates a match nobody is connected to. Its records stay in storage.
	IdleTimeout time.Duration `env:"VMETRICS_IDLE_TIMEOUT" envDefault:"10m"`
}

// LoadEnv parses settings from vars. A nil map reads the process environment.
func LoadEnv(vars map[string]string) (Env, error) {
	var e Env
	var err error
	if vars == nil {
		err = env.Parse(&e)
	} else {
		err = env.ParseWithOptions(&e, env.Options{Environment: vars})
	}
	if err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if e.TickRate <= 0 {
		return Env{}, fmt.Errorf("parse env: tick rate must be positive, got %d", e.TickRate)
	}
	return e, nil
}
