package nakama

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"vmetrics/internal/app"
	"vmetrics/internal/config"
	"vmetrics/internal/domain"
)

// Module carries the settings shared by the RPCs and every match handler.
type Module struct {
	env    config.Env
	rules  domain.Rules
	tokens *app.ScorerTokenService
	now    func() time.Time
}

// NewModule builds a Module. A nil clock uses time.Now.
func NewModule(env config.Env, rules domain.Rules, now func() time.Time) *Module {
	if now == nil {
		now = time.Now
	}
	return &Module{
		env:    env,
		rules:  rules,
		tokens: app.NewScorerTokenService(env.ScorerSecret, env.ScorerIssuer, env.ScorerTokenTTL, now),
		now:    now,
	}
}

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	vars, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if vars == nil {
		vars = map[string]string{}
	}
	env, err := config.LoadEnv(vars)
	if err != nil {
		return err
	}

	if err := config.LoadScoringConfig(env.RulesPath); err != nil {
		logger.Warn("Scoring config not loaded, using default rules: %v", err)
	}
	module := NewModule(env, config.GetRules(), nil)
	if !module.tokens.Enabled() {
		logger.Warn("VMETRICS_SCORER_SECRET is not set; the first player to join a match scores it.")
	}

	if err := module.RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameVMetrics, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return &matchHandler{module: module}, nil
	}); err != nil {
		return err
	}

	logger.Info("V-Metrics Go module loaded.")
	return nil
}
