package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
)

// Service contains the scoring use-cases. Every use-case writes to the store first
// and only mutates the session once the write has succeeded.
type Service struct {
	store ports.MatchStore
	now   func() time.Time
}

// NewService constructs a Service over store. A nil clock uses time.Now.
func NewService(store ports.MatchStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

var (
	ErrPersistence    = errors.New("persistence failure")
	ErrLogDiverged    = errors.New("rally log and scoreboard diverged")
	ErrRecordNotInSet = errors.New("rally record belongs to another set")
	ErrMissingMatchID = domain.ErrMissingMatchID
	ErrMatchStarted   = errors.New("match has already started")
)

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// RallyInput is what the operator enters for one contact.
type RallyInput struct {
	AttackType   domain.AttackType
	Result       domain.Result
	SpikerID     string
	SetterID     string
	TosserID     string
	PassZone     domain.PassPosition
	TossArea     domain.TossArea
	TossDistance domain.TossQuality
	TossLength   domain.TossQuality
	TossHeight   domain.TossQuality
	// TossMiss records a set nobody could attack.
	TossMiss bool
}

func (s *Service) buildRecord(session *domain.MatchSession, in RallyInput) domain.RallyRecord {
	rec := domain.RallyRecord{
		AttackType:   in.AttackType,
		Result:       in.Result,
		SpikerID:     in.SpikerID,
		SetterID:     in.SetterID,
		TossArea:     in.TossArea,
		TossDistance: in.TossDistance,
		TossLength:   in.TossLength,
		TossHeight:   in.TossHeight,
		RecordedAt:   s.now().UTC(),
	}
	if rec.SetterID == "" {
		rec.SetterID = in.TosserID
	}
	if rec.AttackType == "" && rec.SpikerID != "" {
		rec.AttackType = session.DetermineAttackType(rec.SpikerID, rec.TossArea)
	}
	if in.PassZone != "" {
		rec.PassPosition = session.GradePass(in.PassZone, in.TosserID)
	}
	if in.TossMiss {
		rec = domain.MarkTossMiss(rec)
	}
	return session.StampRally(rec)
}

// seedSetRecords persists the roster and an open summary for a set about to start.
func (s *Service) seedSetRecords(ctx context.Context, matchID string, setNumber int, lineup domain.Lineup) error {
	if err := s.store.PutSetRoster(ctx, matchID, setNumber, lineup); err != nil {
		return persistErr("put set roster", err)
	}
	sum := domain.SetSummary{MatchID: matchID, SetNumber: setNumber, Result: domain.SetOpen}
	if err := s.store.UpsertSetSummary(ctx, sum); err != nil {
		return persistErr("seed set summary", err)
	}
	return nil
}

// StartMatch begins a new match at set 1.
func (s *Service) StartMatch(ctx context.Context, session *domain.MatchSession, matchID string, lineup domain.Lineup, firstServer domain.Team) ([]Event, error) {
	if matchID == "" {
		return nil, ErrMissingMatchID
	}
	if session.Phase() != domain.PhaseNotStarted {
		return nil, fmt.Errorf("%w: phase %s", ErrMatchStarted, session.Phase())
	}
	if err := domain.CheckSetStart(lineup, firstServer); err != nil {
		return nil, err
	}
	if err := s.seedSetRecords(ctx, matchID, 1, lineup); err != nil {
		return nil, err
	}
	if err := session.ResetMatch(matchID, lineup, firstServer); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// ResumeMatch rebuilds the session from persisted summaries and the last rally.
// A read failure or an unknown match degrades to a new match with a notice.
func (s *Service) ResumeMatch(ctx context.Context, session *domain.MatchSession, matchID string) ([]Event, error) {
	if matchID == "" {
		return nil, ErrMissingMatchID
	}

	summaries, err := s.store.ListSetSummaries(ctx, matchID)
	var last domain.RallyRecord
	var found bool
	if err == nil {
		last, found, err = s.store.LastRally(ctx, matchID)
	}
	if err != nil {
		session.Restore(matchID, nil, 0, 0)
		return []Event{
			{Kind: EventNotice, Payload: NoticePayload{Message: NoticeResumedAsNew, Cause: persistErr("resume", err)}},
			stateChanged(session),
		}, nil
	}

	lastRallyID := 0
	if found {
		lastRallyID = last.RallyID
	}
	session.Restore(matchID, summaries, lastRallyID, last.PlayID)

	var events []Event
	if len(summaries) == 0 && !found {
		events = append(events, Event{Kind: EventNotice, Payload: NoticePayload{Message: NoticeResumedAsNew}})
	}
	if session.Phase() == domain.PhaseMatchEnded {
		events = append(events, matchEnded(session))
	}
	return append(events, stateChanged(session)), nil
}

// StartSet seeds the current set after a resume or a discarded set.
func (s *Service) StartSet(ctx context.Context, session *domain.MatchSession, lineup domain.Lineup, firstServer domain.Team) ([]Event, error) {
	if session.Phase() != domain.PhaseNextSetSetup {
		return nil, fmt.Errorf("%w: phase %s", domain.ErrSetNotClosed, session.Phase())
	}
	if err := domain.CheckSetStart(lineup, firstServer); err != nil {
		return nil, err
	}
	st := session.State()
	if err := s.seedSetRecords(ctx, st.MatchID, st.SetNumber, lineup); err != nil {
		return nil, err
	}
	if err := session.StartSet(lineup, firstServer); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// RecordRally appends a rally record and applies its scoring effect.
func (s *Service) RecordRally(ctx context.Context, session *domain.MatchSession, in RallyInput) ([]Event, error) {
	rec := s.buildRecord(session, in)
	if err := session.CheckRally(rec); err != nil {
		return nil, err
	}
	flags := session.CheckAttackLegality(rec)

	stored, err := s.store.AppendRally(ctx, rec)
	if err != nil {
		return nil, persistErr("append rally", err)
	}
	out, err := session.ApplyRally(stored)
	if err != nil {
		if delErr := s.store.DeleteRally(ctx, stored.MatchID, stored.PlayID); delErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrLogDiverged, errors.Join(err, delErr))
		}
		return nil, err
	}

	events := []Event{{
		Kind:    EventRallyRecorded,
		Payload: RallyRecordedPayload{Record: stored, Delta: domain.PointDelta(&stored), Rotated: out.Rotated},
	}}
	events = append(events, notices(flags)...)
	events = append(events, notices(out.Notices)...)
	return append(events, stateChanged(session)), nil
}

// loadCurrentSetRally fetches a record and checks it belongs to the set in play.
func (s *Service) loadCurrentSetRally(ctx context.Context, session *domain.MatchSession, playID int64) (domain.RallyRecord, error) {
	if err := session.CheckInPlay(); err != nil {
		return domain.RallyRecord{}, err
	}
	st := session.State()
	rec, err := s.store.GetRally(ctx, st.MatchID, playID)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.RallyRecord{}, fmt.Errorf("rally %d: %w", playID, err)
	}
	if err != nil {
		return domain.RallyRecord{}, persistErr("get rally", err)
	}
	if rec.SetNumber != st.SetNumber {
		return domain.RallyRecord{}, fmt.Errorf("%w: rally %d is in set %d", ErrRecordNotInSet, playID, rec.SetNumber)
	}
	return rec, nil
}

// EditRally replaces a record of the current set and corrects the score by delta.
// The rotation is never replayed.
func (s *Service) EditRally(ctx context.Context, session *domain.MatchSession, playID int64, in RallyInput) ([]Event, error) {
	old, err := s.loadCurrentSetRally(ctx, session, playID)
	if err != nil {
		return nil, err
	}

	updated := s.buildRecord(session, in)
	updated.PlayID = old.PlayID
	updated.MatchID = old.MatchID
	updated.SetNumber = old.SetNumber
	updated.RallyID = old.RallyID
	updated.RotationSlot = old.RotationSlot
	updated.RecordedAt = old.RecordedAt
	if in.SetterID == "" && in.TosserID == "" {
		updated.SetterID = old.SetterID
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.PutRally(ctx, updated); err != nil {
		return nil, persistErr("put rally", err)
	}
	if err := session.ApplyCorrection(&old, &updated); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogDiverged, err)
	}
	return []Event{
		{Kind: EventRallyEdited, Payload: RallyEditedPayload{Old: old, Updated: updated}},
		stateChanged(session),
	}, nil
}

// DeleteRally removes a record of the current set and takes back its point.
func (s *Service) DeleteRally(ctx context.Context, session *domain.MatchSession, playID int64) ([]Event, error) {
	old, err := s.loadCurrentSetRally(ctx, session, playID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteRally(ctx, old.MatchID, old.PlayID); err != nil {
		return nil, persistErr("delete rally", err)
	}
	if err := session.ApplyCorrection(&old, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogDiverged, err)
	}
	return []Event{
		{Kind: EventRallyDeleted, Payload: RallyDeletedPayload{Record: old}},
		stateChanged(session),
	}, nil
}

// Undo removes the records written since the last snapshot, writes back a record a
// correction replaced, then restores the snapshot.
// If the first write fails nothing changes. A failure after that returns ErrLogDiverged.
func (s *Service) Undo(ctx context.Context, session *domain.MatchSession) ([]Event, error) {
	_, events, err := s.undo(ctx, session)
	return events, err
}

func (s *Service) undo(ctx context.Context, session *domain.MatchSession) (domain.Snapshot, []Event, error) {
	snap, err := session.PeekUndo()
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	matchID := session.State().MatchID
	if snap.Replaced != nil {
		if err := s.store.RestoreRally(ctx, *snap.Replaced); err != nil {
			return domain.Snapshot{}, nil, persistErr("restore corrected rally", err)
		}
	}
	removed, err := s.store.DeleteRalliesAfter(ctx, matchID, snap.LogMark)
	if err != nil {
		err = persistErr("delete undone rallies", err)
		if snap.Replaced != nil {
			err = fmt.Errorf("%w: %w", ErrLogDiverged, err)
		}
		return domain.Snapshot{}, nil, err
	}
	if _, err := session.Undo(); err != nil {
		return domain.Snapshot{}, nil, fmt.Errorf("%w: %d records removed: %w", ErrLogDiverged, removed, err)
	}
	return snap, []Event{
		{Kind: EventNotice, Payload: NoticePayload{Message: NoticeUndone}},
		stateChanged(session),
	}, nil
}

// CorrectLastRally undoes the last scoring mutation and hands its record back for re-entry.
func (s *Service) CorrectLastRally(ctx context.Context, session *domain.MatchSession) ([]Event, error) {
	if _, err := session.PeekUndo(); err != nil {
		return nil, err
	}
	last, found, err := s.store.LastRally(ctx, session.State().MatchID)
	if err != nil {
		return nil, persistErr("last rally", err)
	}
	snap, events, err := s.undo(ctx, session)
	if err != nil {
		return nil, err
	}
	if found && snap.Replaced == nil && last.PlayID > snap.LogMark {
		events = append(events, Event{Kind: EventCorrection, Payload: CorrectionPayload{Record: last}})
	}
	return events, nil
}

// FinishSet persists the final score and closes the set.
func (s *Service) FinishSet(ctx context.Context, session *domain.MatchSession) ([]Event, error) {
	pending, err := session.PendingSetResult()
	if err != nil {
		return nil, err
	}
	sum := domain.SetSummary{
		MatchID:            session.State().MatchID,
		SetNumber:          pending.SetNumber,
		OurFinalScore:      pending.OurScore,
		OpponentFinalScore: pending.OpponentScore,
		Result:             pending.Result,
	}
	if err := s.store.UpsertSetSummary(ctx, sum); err != nil {
		return nil, persistErr("finish set summary", err)
	}
	res, err := session.FinishSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogDiverged, err)
	}

	events := []Event{{Kind: EventSetEnded, Payload: SetEndedPayload{Result: res}}}
	if session.Phase() == domain.PhaseMatchEnded {
		events = append(events, matchEnded(session))
	}
	return append(events, stateChanged(session)), nil
}

// ProceedToNextSet persists the next set's roster and open summary, then moves the session on.
func (s *Service) ProceedToNextSet(ctx context.Context, session *domain.MatchSession, lineup domain.Lineup, firstServer domain.Team) ([]Event, error) {
	switch session.Phase() {
	case domain.PhaseSetClosed:
	case domain.PhaseMatchEnded:
		return nil, domain.ErrMatchEnded
	default:
		return nil, fmt.Errorf("%w: phase %s", domain.ErrSetNotClosed, session.Phase())
	}
	if err := domain.CheckSetStart(lineup, firstServer); err != nil {
		return nil, err
	}
	if err := s.seedSetRecords(ctx, session.State().MatchID, session.NextSetNumber(), lineup); err != nil {
		return nil, err
	}
	if err := session.ProceedToNextSet(lineup, firstServer); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// DiscardSet deletes the current set's rallies and summary and waits for a new lineup.
func (s *Service) DiscardSet(ctx context.Context, session *domain.MatchSession) ([]Event, error) {
	if err := session.CheckInPlay(); err != nil {
		return nil, err
	}
	st := session.State()
	rallies, err := s.store.ListRallies(ctx, st.MatchID, st.SetNumber)
	if err != nil {
		return nil, persistErr("list set rallies", err)
	}
	// Rally ids are match-wide, so the set's first id is where numbering resumes.
	next := st.NextRallyID
	if len(rallies) > 0 {
		next = rallies[0].RallyID
		for _, r := range rallies[1:] {
			next = min(next, r.RallyID)
		}
		if _, err := s.store.DeleteRalliesFrom(ctx, st.MatchID, next); err != nil {
			return nil, persistErr("delete set rallies", err)
		}
	}
	if err := s.store.DeleteSetSummary(ctx, st.MatchID, st.SetNumber); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, persistErr("delete set summary", err)
	}
	if err := session.DiscardSet(next); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogDiverged, err)
	}
	return []Event{
		{Kind: EventNotice, Payload: NoticePayload{Message: NoticeSetDiscarded}},
		stateChanged(session),
	}, nil
}

// AdjustScore applies a manual scoreboard correction without a rally record.
func (s *Service) AdjustScore(session *domain.MatchSession, team domain.Team, step int) ([]Event, error) {
	out, err := session.AdjustScore(team, step)
	if err != nil {
		return nil, err
	}
	return append(notices(out.Notices), stateChanged(session)), nil
}

// ToggleServe flips the serving team.
func (s *Service) ToggleServe(session *domain.MatchSession) ([]Event, error) {
	if err := session.ToggleServe(); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// LiberoIn sends a libero on for a back-row player.
func (s *Service) LiberoIn(session *domain.MatchSession, originalID, liberoID string) ([]Event, error) {
	if err := session.LiberoIn(originalID, liberoID); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// LiberoOut brings the original player back.
func (s *Service) LiberoOut(session *domain.MatchSession, originalID string) ([]Event, error) {
	if _, err := session.LiberoOut(originalID); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// SwapLibero exchanges the libero replacing originalID.
func (s *Service) SwapLibero(session *domain.MatchSession, originalID, liberoID string) ([]Event, error) {
	if err := session.SwapLibero(originalID, liberoID); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

// Substitute performs a regular substitution and asks for a setter when needed.
func (s *Service) Substitute(session *domain.MatchSession, outID, inID string) ([]Event, error) {
	if err := session.Substitute(outID, inID); err != nil {
		return nil, err
	}
	var events []Event
	if session.SetterPending() {
		events = append(events, Event{Kind: EventNotice, Payload: NoticePayload{Message: NoticeSetterNeeded}})
	}
	return append(events, stateChanged(session)), nil
}

// DesignateSetter completes a setter hand-off.
func (s *Service) DesignateSetter(session *domain.MatchSession, playerID string) ([]Event, error) {
	if err := session.DesignateSetter(playerID); err != nil {
		return nil, err
	}
	return []Event{stateChanged(session)}, nil
}

func matchEnded(session *domain.MatchSession) Event {
	st := session.State()
	return Event{
		Kind:    EventMatchEnded,
		Payload: MatchEndedPayload{OurSetsWon: st.OurSetsWon, OpponentSetsWon: st.OpponentSetsWon},
	}
}
