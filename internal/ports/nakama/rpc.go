package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"

	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

var (
	errUnauthenticated = runtime.NewError("authentication required", codeUnauthenticated)
	errBadPayload      = runtime.NewError("invalid payload", codeInvalidArgument)
	errMatchNotFound   = runtime.NewError("match not found", codeNotFound)
	errNotOwner        = runtime.NewError("only the match owner can do this", codePermissionDenied)
	errTokensDisabled  = runtime.NewError("scorer tokens are not configured", codeFailedPrecondition)
	errInternal        = runtime.NewError("internal error", codeInternal)
)

// rpcBackend is the part of runtime.NakamaModule the RPCs need.
type rpcBackend interface {
	StorageModule
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
}

type matchRequest struct {
	MatchID string `json:"match_id" validate:"required,uuid"`
}

type rallyLogRequest struct {
	MatchID   string `json:"match_id" validate:"required,uuid"`
	SetNumber int    `json:"set_number" validate:"gte=0,lte=5"`
}

type matchResponse struct {
	MatchID       string `json:"match_id"`
	NakamaMatchID string `json:"nakama_match_id"`
	ScorerToken   string `json:"scorer_token,omitempty"`
}

type scorerTokenResponse struct {
	Token string `json:"token"`
}

type rallyLogResponse struct {
	Rallies   []domain.RallyRecord `json:"rallies"`
	Summaries []domain.SetSummary  `json:"summaries"`
}

// RegisterRPCs registers every RPC the module exposes.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateMatch: m.rpcCreateMatch,
		RpcResumeMatch: m.rpcResumeMatch,
		RpcScorerToken: m.rpcScorerToken,
		RpcRallyLog:    m.rpcRallyLog,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) rpcCreateMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return m.createMatch(ctx, logger, nk)
}

func (m *Module) rpcResumeMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return m.resumeMatch(ctx, logger, nk, payload)
}

func (m *Module) rpcScorerToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return m.scorerToken(ctx, logger, nk, payload)
}

func (m *Module) rpcRallyLog(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return m.rallyLog(ctx, logger, nk, payload)
}

// createMatch starts an authoritative match owned by the caller.
//
// Payload: unused.
// Returns: matchResponse with a scorer token when tokens are configured.
func (m *Module) createMatch(ctx context.Context, logger runtime.Logger, nk rpcBackend) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", errUnauthenticated
	}

	matchID := uuid.NewString()
	store := NewNakamaMatchStore(nk, m.env.StorageCollection)
	if err := store.PutOwner(ctx, MatchOwner{MatchID: matchID, UserID: userID, CreatedAt: m.now().UTC()}); err != nil {
		logger.Error("RpcCreateMatch [User:%s]: Failed to register match: %v", userID, err)
		return "", errInternal
	}

	nakamaMatchID, err := nk.MatchCreate(ctx, MatchNameVMetrics, map[string]interface{}{"match_id": matchID})
	if err != nil {
		logger.Error("RpcCreateMatch [User:%s]: Failed to create match: %v", userID, err)
		return "", errInternal
	}

	logger.Info("RpcCreateMatch [User:%s]: Created match %s (%s)", userID, matchID, nakamaMatchID)
	return m.matchResponse(logger, userID, matchID, nakamaMatchID)
}

// resumeMatch restarts a match from its stored records, for example after the server restarted.
//
// Payload: {"match_id": "<uuid>"}
func (m *Module) resumeMatch(ctx context.Context, logger runtime.Logger, nk rpcBackend, payload string) (string, error) {
	var req matchRequest
	if err := decode([]byte(payload), &req); err != nil {
		return "", errBadPayload
	}
	userID, err := m.checkOwner(ctx, logger, nk, req.MatchID)
	if err != nil {
		return "", err
	}

	params := map[string]interface{}{"match_id": req.MatchID, "resume": true}
	nakamaMatchID, err := nk.MatchCreate(ctx, MatchNameVMetrics, params)
	if err != nil {
		logger.Error("RpcResumeMatch [User:%s]: Failed to resume match %s: %v", userID, req.MatchID, err)
		return "", errInternal
	}

	logger.Info("RpcResumeMatch [User:%s]: Resumed match %s (%s)", userID, req.MatchID, nakamaMatchID)
	return m.matchResponse(logger, userID, req.MatchID, nakamaMatchID)
}

// scorerToken issues a fresh scorer token for a match the caller owns.
//
// Payload: {"match_id": "<uuid>"}
func (m *Module) scorerToken(ctx context.Context, logger runtime.Logger, nk rpcBackend, payload string) (string, error) {
	if !m.tokens.Enabled() {
		return "", errTokensDisabled
	}
	var req matchRequest
	if err := decode([]byte(payload), &req); err != nil {
		return "", errBadPayload
	}
	userID, err := m.checkOwner(ctx, logger, nk, req.MatchID)
	if err != nil {
		return "", err
	}

	token, err := m.tokens.Issue(userID, req.MatchID)
	if err != nil {
		logger.Error("RpcScorerToken [User:%s]: Failed to issue token: %v", userID, err)
		return "", errInternal
	}
	out, err := json.Marshal(scorerTokenResponse{Token: token})
	if err != nil {
		return "", errInternal
	}
	return string(out), nil
}

// rallyLog returns the stored rallies and set summaries of a match.
// A set_number of 0 returns every set.
//
// Payload: {"match_id": "<uuid>", "set_number": 0}
func (m *Module) rallyLog(ctx context.Context, logger runtime.Logger, nk rpcBackend, payload string) (string, error) {
	var req rallyLogRequest
	if err := decode([]byte(payload), &req); err != nil {
		return "", errBadPayload
	}
	if _, err := m.checkOwner(ctx, logger, nk, req.MatchID); err != nil {
		return "", err
	}

	store := NewNakamaMatchStore(nk, m.env.StorageCollection)
	rallies, err := store.ListRallies(ctx, req.MatchID, req.SetNumber)
	if err != nil {
		logger.Error("RpcRallyLog: Failed to list rallies of %s: %v", req.MatchID, err)
		return "", errInternal
	}
	summaries, err := store.ListSetSummaries(ctx, req.MatchID)
	if err != nil {
		logger.Error("RpcRallyLog: Failed to list summaries of %s: %v", req.MatchID, err)
		return "", errInternal
	}

	out, err := json.Marshal(rallyLogResponse{Rallies: rallies, Summaries: summaries})
	if err != nil {
		return "", errInternal
	}
	return string(out), nil
}

// checkOwner returns the caller's user id if they own matchID.
func (m *Module) checkOwner(ctx context.Context, logger runtime.Logger, nk rpcBackend, matchID string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", errUnauthenticated
	}

	owner, err := NewNakamaMatchStore(nk, m.env.StorageCollection).Owner(ctx, matchID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return "", errMatchNotFound
	case err != nil:
		logger.Error("Failed to read owner of %s: %v", matchID, err)
		return "", errInternal
	case owner.UserID != userID:
		logger.Warn("User %s is not the owner of match %s", userID, matchID)
		return "", errNotOwner
	}
	return userID, nil
}

func (m *Module) matchResponse(logger runtime.Logger, userID, matchID, nakamaMatchID string) (string, error) {
	resp := matchResponse{MatchID: matchID, NakamaMatchID: nakamaMatchID}
	if m.tokens.Enabled() {
		token, err := m.tokens.Issue(userID, matchID)
		if err != nil {
			logger.Error("Failed to issue scorer token for %s: %v", matchID, err)
			return "", errInternal
		}
		resp.ScorerToken = token
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return "", errInternal
	}
	return string(out), nil
}
