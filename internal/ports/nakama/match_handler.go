package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"vmetrics/internal/app"
	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
)

const metricOps = "vmetrics_ops"

// MetricsModule is the part of runtime.NakamaModule used for counters.
type MetricsModule interface {
	MetricsCounterAdd(name string, tags map[string]string, delta int64)
}

// MatchState holds the authoritative runtime state for one match being scored.
type MatchState struct {
	MatchID   string                      `json:"match_id"`
	ScorerID  string                      `json:"scorer_id"` // user allowed to change the match
	Tick      int64                       `json:"tick"`
	IdleSince int64                       `json:"idle_since"` // tick the match became empty, -1 while someone is connected
	IdleTicks int64                       `json:"idle_ticks"`
	Presences map[string]runtime.Presence `json:"-"`
	Session   *domain.MatchSession        `json:"-"`
	App       *app.Service                `json:"-"`
	Tokens    *app.ScorerTokenService     `json:"-"`
	Metrics   MetricsModule               `json:"-"`
}

func newMatchState(matchID string, m *Module, store ports.MatchStore, metrics MetricsModule) *MatchState {
	idleTicks := int64(m.env.IdleTimeout.Seconds()) * int64(m.env.TickRate)
	return &MatchState{
		MatchID:   matchID,
		IdleSince: -1,
		IdleTicks: idleTicks,
		Presences: make(map[string]runtime.Presence),
		Session:   domain.NewMatchSession(m.rules),
		App:       app.NewService(store, m.now),
		Tokens:    m.tokens,
		Metrics:   metrics,
	}
}

func (ms *MatchState) count(op, outcome string) {
	if ms.Metrics == nil {
		return
	}
	ms.Metrics.MetricsCounterAdd(metricOps, map[string]string{"op": op, "outcome": outcome}, 1)
}

type matchHandler struct {
	module *Module
}

// MatchInit creates the state for a new match, or restores it when params carry resume=true.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	matchID, _ := params["match_id"].(string)
	resume, _ := params["resume"].(bool)
	if matchID == "" {
		logger.Error("MatchInit: match_id param is required.")
		return nil, 0, ""
	}

	store := NewNakamaMatchStore(nk, mh.module.env.StorageCollection)
	state := newMatchState(matchID, mh.module, store, nk)

	if resume {
		events, err := state.App.ResumeMatch(ctx, state.Session, matchID)
		if err != nil {
			logger.Error("MatchInit: Failed to resume match %s: %v", matchID, err)
			return nil, 0, ""
		}
		for _, ev := range events {
			if p, ok := ev.Payload.(app.NoticePayload); ok && p.Cause != nil {
				logger.Warn("MatchInit: %s: %v", p.Message, p.Cause)
			}
		}
		logger.Info("MatchInit: Resumed match %s at set %d.", matchID, state.Session.State().SetNumber)
	}

	label, err := matchLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	return state, mh.module.env.TickRate, label
}

// MatchJoinAttempt lets anyone watch. Presenting a valid scorer token claims the scorer seat.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	token := metadata[MetadataScorerToken]
	if token == "" {
		return matchState, true, ""
	}

	userID := presence.GetUserId()
	if err := matchState.Tokens.Verify(token, userID, matchState.MatchID); err != nil {
		logger.Warn("MatchJoinAttempt: Rejected scorer token from %s: %v", userID, err)
		return matchState, false, "invalid scorer token"
	}
	if matchState.ScorerID != "" && matchState.ScorerID != userID {
		if _, online := matchState.Presences[matchState.ScorerID]; online {
			return matchState, false, "match already has a scorer"
		}
	}

	matchState.ScorerID = userID
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
	}
	// Without a signing secret the first presence scores.
	if matchState.ScorerID == "" && !matchState.Tokens.Enabled() && len(presences) > 0 {
		matchState.ScorerID = presences[0].GetUserId()
		logger.Warn("MatchJoin: Scorer tokens disabled, %s scores match %s.", matchState.ScorerID, matchState.MatchID)
	}
	matchState.IdleSince = -1

	mh.sendSnapshot(matchState, dispatcher, logger, presences)
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more presences leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())
		if p.GetUserId() == matchState.ScorerID {
			logger.Debug("MatchLeave: Scorer %s left match %s.", p.GetUserId(), matchState.MatchID)
		}
	}
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick
	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	if len(matchState.Presences) > 0 {
		matchState.IdleSince = -1
		return matchState
	}
	if matchState.IdleSince < 0 {
		matchState.IdleSince = tick
	}
	if tick-matchState.IdleSince >= matchState.IdleTicks {
		logger.Info("MatchLoop: Terminating idle match %s.", matchState.MatchID)
		return nil
	}
	return matchState
}

// opNames labels client op codes in logs and metrics.
var opNames = map[int64]string{
	OpStartMatch:       "StartMatch",
	OpStartSet:         "StartSet",
	OpRecordRally:      "RecordRally",
	OpEditRally:        "EditRally",
	OpDeleteRally:      "DeleteRally",
	OpUndo:             "Undo",
	OpCorrectLastRally: "CorrectLastRally",
	OpFinishSet:        "FinishSet",
	OpNextSet:          "NextSet",
	OpDiscardSet:       "DiscardSet",
	OpLiberoIn:         "LiberoIn",
	OpLiberoOut:        "LiberoOut",
	OpSwapLibero:       "SwapLibero",
	OpSubstitute:       "Substitute",
	OpDesignateSetter:  "DesignateSetter",
	OpAdjustScore:      "AdjustScore",
	OpToggleServe:      "ToggleServe",
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	name, known := opNames[msg.GetOpCode()]
	if !known {
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	senderID := msg.GetUserId()
	if senderID != state.ScorerID {
		logger.Warn("%s: User %s is not the scorer of match %s.", name, senderID, state.MatchID)
		state.count(name, "forbidden")
		mh.sendError(state, dispatcher, logger, senderID, ErrCodeForbidden, "only the scorer can change this match")
		return
	}

	events, err := mh.apply(ctx, state, msg.GetOpCode(), msg.GetData())
	if err != nil {
		switch {
		case errors.Is(err, app.ErrLogDiverged):
			logger.Error("%s: %v", name, err)
			state.count(name, "failed")
			mh.sendError(state, dispatcher, logger, senderID, ErrCodeInternal, "storage and scoreboard disagree; resume the match")
		case errors.Is(err, app.ErrPersistence):
			logger.Error("%s: %v", name, err)
			state.count(name, "failed")
			mh.sendError(state, dispatcher, logger, senderID, ErrCodeInternal, "could not save; nothing was changed")
		default:
			logger.Warn("%s: Rejected for %s: %v", name, senderID, err)
			state.count(name, "rejected")
			mh.sendError(state, dispatcher, logger, senderID, ErrCodeBadRequest, err.Error())
		}
		return
	}

	state.count(name, "ok")
	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	mh.updateLabel(state, dispatcher, logger)
}

// apply decodes a scorer message and runs the matching use-case.
func (mh *matchHandler) apply(ctx context.Context, state *MatchState, opCode int64, data []byte) ([]app.Event, error) {
	svc, session := state.App, state.Session

	switch opCode {
	case OpStartMatch, OpStartSet, OpNextSet:
		var req startSetRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		switch opCode {
		case OpStartMatch:
			return svc.StartMatch(ctx, session, state.MatchID, req.Lineup, req.FirstServer)
		case OpStartSet:
			return svc.StartSet(ctx, session, req.Lineup, req.FirstServer)
		default:
			return svc.ProceedToNextSet(ctx, session, req.Lineup, req.FirstServer)
		}
	case OpRecordRally:
		var req rallyRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.RecordRally(ctx, session, req.input())
	case OpEditRally:
		var req editRallyRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.EditRally(ctx, session, req.PlayID, req.Rally.input())
	case OpDeleteRally:
		var req deleteRallyRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.DeleteRally(ctx, session, req.PlayID)
	case OpUndo:
		return svc.Undo(ctx, session)
	case OpCorrectLastRally:
		return svc.CorrectLastRally(ctx, session)
	case OpFinishSet:
		return svc.FinishSet(ctx, session)
	case OpDiscardSet:
		return svc.DiscardSet(ctx, session)
	case OpLiberoIn, OpSwapLibero:
		var req liberoRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if opCode == OpLiberoIn {
			return svc.LiberoIn(session, req.OriginalID, req.LiberoID)
		}
		return svc.SwapLibero(session, req.OriginalID, req.LiberoID)
	case OpLiberoOut:
		var req liberoOutRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.LiberoOut(session, req.OriginalID)
	case OpSubstitute:
		var req substituteRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.Substitute(session, req.OutID, req.InID)
	case OpDesignateSetter:
		var req designateSetterRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.DesignateSetter(session, req.PlayerID)
	case OpAdjustScore:
		var req adjustScoreRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return svc.AdjustScore(session, req.Team, req.Step)
	case OpToggleServe:
		return svc.ToggleServe(session)
	}
	return nil, errInvalidPayload
}

// broadcastEvent converts an app event to JSON and dispatches it.
// Corrections go to the scorer only since they feed the scorer's entry form.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	if p, ok := ev.Payload.(app.NoticePayload); ok && p.Cause != nil {
		logger.Warn("Notice for match %s: %s: %v", state.MatchID, p.Message, p.Cause)
	}

	opCode, payload, ok := encodeEvent(ev)
	if !ok {
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}
	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	targets := ev.Recipients
	if opCode == OpCorrection {
		targets = []string{state.ScorerID}
	}

	// Determine recipients (default to broadcast)
	var recipients []runtime.Presence
	if len(targets) > 0 {
		for _, uid := range targets {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// Intended recipients are offline; do not fall back to broadcasting.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast event %v: %v", ev.Kind, err)
	}
}

// sendSnapshot sends the current view to newly joined presences.
func (mh *matchHandler) sendSnapshot(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, presences []runtime.Presence) {
	bytes, err := json.Marshal(state.Session.View())
	if err != nil {
		logger.Error("Failed to marshal snapshot: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpStateSnapshot, bytes, presences, nil, true); err != nil {
		logger.Error("Failed to send snapshot: %v", err)
	}
}

// sendError sends an error message to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	bytes, err := json.Marshal(errorMessage{Code: code, Message: message})
	if err != nil {
		logger.Error("Failed to marshal error message: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	if err := dispatcher.BroadcastMessage(OpError, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("Failed to send error to %s: %v", userID, err)
	}
}

// matchLabel encodes the searchable match label.
func matchLabel(state *MatchState) (string, error) {
	st := state.Session.State()
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":           "vmetrics",
		"match_id":       state.MatchID,
		"phase":          string(state.Session.Phase()),
		"set":            st.SetNumber,
		"our_score":      st.OurScore,
		"opponent_score": st.OpponentScore,
		"our_sets":       st.OurSetsWon,
		"opponent_sets":  st.OpponentSetsWon,
		"scored":         state.ScorerID != "",
	})
	if err != nil {
		return "", err
	}
	labelBytes, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(labelBytes), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if matchState, ok := state.(*MatchState); ok {
		logger.Debug("MatchTerminate: Match %s terminated with %d grace seconds.", matchState.MatchID, graceSeconds)
	}
	return state
}

// MatchSignal answers any signal with the current view as JSON.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}
	bytes, err := json.Marshal(matchState.Session.View())
	if err != nil {
		logger.Error("MatchSignal: Failed to marshal view: %v", err)
		return matchState, ""
	}
	return matchState, string(bytes)
}
