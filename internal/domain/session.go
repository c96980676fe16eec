package domain

import "fmt"

// Phase is the lifecycle stage of the set being scored.
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseInProgress     Phase = "in_progress"
	PhaseAwaitingSetEnd Phase = "awaiting_set_end"
	PhaseSetClosed      Phase = "set_closed"
	PhaseNextSetSetup   Phase = "next_set_setup"
	PhaseMatchEnded     Phase = "match_ended"
)

// MatchSession owns every piece of mutable state for one match being scored.
// It is not safe for concurrent use; a session belongs to one match loop.
type MatchSession struct {
	rules   Rules
	phase   Phase
	state   MatchState
	lineup  Lineup
	court   Court
	history *History
	// logMark is the highest PlayID this session has applied or restored.
	logMark int64
}

// PointOutcome describes the side effects of a scoring mutation.
type PointOutcome struct {
	Rotated bool
	// Notices are operator messages for automatic libero changes.
	Notices []string
}

// NewMatchSession creates an empty session governed by rules.
func NewMatchSession(rules Rules) *MatchSession {
	return &MatchSession{
		rules:   rules,
		phase:   PhaseNotStarted,
		court:   newCourt(Lineup{}),
		history: NewHistory(rules.HistoryDepth),
	}
}

// Rules returns the rules the session was created with.
func (s *MatchSession) Rules() Rules { return s.rules }

// Phase returns the current lifecycle phase.
func (s *MatchSession) Phase() Phase { return s.phase }

// State returns a copy of the scoreboard.
func (s *MatchSession) State() MatchState { return s.state }

// Lineup returns a copy of the lineup the current set started with.
func (s *MatchSession) Lineup() Lineup { return s.lineup.Clone() }

// Court returns a copy of the on-court state.
func (s *MatchSession) Court() Court { return s.court.Clone() }

// UndoDepth returns how many scoring mutations can be undone.
func (s *MatchSession) UndoDepth() int { return s.history.Len() }

// ResetMatch starts a brand-new match at set 1.
func (s *MatchSession) ResetMatch(matchID string, lineup Lineup, firstServer Team) error {
	if matchID == "" {
		return ErrMissingMatchID
	}
	if err := CheckSetStart(lineup, firstServer); err != nil {
		return err
	}
	s.state = MatchState{MatchID: matchID, SetNumber: 1, NextRallyID: 1}
	s.logMark = 0
	s.seedSet(lineup, firstServer)
	return nil
}

// Restore rebuilds the match counters from persisted summaries and the last stored rally.
// Without any summaries the match is treated as new and starts at set 1.
// The session waits in PhaseNextSetSetup for a lineup, or ends if the match is decided.
func (s *MatchSession) Restore(matchID string, summaries []SetSummary, lastRallyID int, lastPlayID int64) {
	state := MatchState{MatchID: matchID, SetNumber: 1, RotationSlot: 1, NextRallyID: 1}
	maxCompleted := 0
	for _, sum := range summaries {
		switch sum.Result {
		case SetWon:
			state.OurSetsWon++
		case SetLost:
			state.OpponentSetsWon++
		default:
			continue
		}
		if sum.SetNumber > maxCompleted {
			maxCompleted = sum.SetNumber
		}
	}
	state.SetNumber = maxCompleted + 1
	if lastRallyID > 0 {
		state.NextRallyID = lastRallyID + 1
	}

	s.state = state
	s.logMark = lastPlayID
	s.lineup = Lineup{}
	s.court = newCourt(Lineup{})
	s.history.Clear()
	s.phase = PhaseNextSetSetup
	if state.decided(s.rules) {
		s.phase = PhaseMatchEnded
	}
}

// StartSet seeds the current set number with a lineup. Used after Restore.
func (s *MatchSession) StartSet(lineup Lineup, firstServer Team) error {
	if s.phase != PhaseNextSetSetup {
		return fmt.Errorf("%w: phase %s", ErrSetNotClosed, s.phase)
	}
	if err := CheckSetStart(lineup, firstServer); err != nil {
		return err
	}
	s.seedSet(lineup, firstServer)
	return nil
}

// NextSetNumber returns the set number ProceedToNextSet will move to.
func (s *MatchSession) NextSetNumber() int { return s.state.SetNumber + 1 }

// ProceedToNextSet moves a closed set on to the next one with a fresh lineup.
func (s *MatchSession) ProceedToNextSet(lineup Lineup, firstServer Team) error {
	if s.phase == PhaseMatchEnded {
		return ErrMatchEnded
	}
	if s.phase != PhaseSetClosed {
		return fmt.Errorf("%w: phase %s", ErrSetNotClosed, s.phase)
	}
	if err := CheckSetStart(lineup, firstServer); err != nil {
		return err
	}
	s.state.SetNumber++
	s.seedSet(lineup, firstServer)
	return nil
}

// CheckSetStart validates the inputs of ResetMatch, StartSet and ProceedToNextSet.
func CheckSetStart(lineup Lineup, firstServer Team) error {
	if !firstServer.Valid() {
		return fmt.Errorf("%w: first server %q", ErrInvalidLineup, firstServer)
	}
	return lineup.Validate()
}

// seedSet resets everything that is per-set. SetNumber, NextRallyID and set counters carry over.
func (s *MatchSession) seedSet(lineup Lineup, firstServer Team) {
	s.lineup = lineup.Clone()
	s.court = newCourt(lineup)
	s.state.RotationSlot = 1
	s.state.OurScore = 0
	s.state.OpponentScore = 0
	s.state.FirstServer = firstServer
	s.state.OurServe = firstServer == TeamOurs
	s.state.ActiveSetterID = lineup.Setter()
	s.history.Clear()
	s.phase = PhaseInProgress
}

// CheckInPlay reports whether scoring and court changes are accepted.
func (s *MatchSession) CheckInPlay() error {
	switch s.phase {
	case PhaseInProgress, PhaseAwaitingSetEnd:
		return nil
	case PhaseMatchEnded:
		return ErrMatchEnded
	}
	return fmt.Errorf("%w: phase %s", ErrSetNotInPlay, s.phase)
}

// refreshPhase derives whether the set is waiting for the operator to close it.
func (s *MatchSession) refreshPhase() {
	if s.phase != PhaseInProgress && s.phase != PhaseAwaitingSetEnd {
		return
	}
	if s.CanFinishSet() {
		s.phase = PhaseAwaitingSetEnd
	} else {
		s.phase = PhaseInProgress
	}
}

func (s *MatchSession) snapshot(replaced *RallyRecord) {
	s.history.Push(Snapshot{State: s.state, Court: s.court, LogMark: s.logMark, Replaced: replaced})
}

// LogMark returns the highest PlayID the session has applied or restored.
func (s *MatchSession) LogMark() int64 { return s.logMark }

// AddPoint credits a point. A side-out won by us advances the rotation
// and then ejects any libero that rotated into the front row.
func (s *MatchSession) AddPoint(forUs bool) (PointOutcome, error) {
	if err := s.CheckInPlay(); err != nil {
		return PointOutcome{}, err
	}
	if !ValidSlot(s.state.RotationSlot) {
		return PointOutcome{}, fmt.Errorf("%w: %d", ErrInvalidRotation, s.state.RotationSlot)
	}
	s.snapshot(nil)
	out := PointOutcome{Rotated: s.state.scorePoint(forUs)}
	if out.Rotated {
		out.Notices = s.ejectFrontRowLiberos()
	}
	s.refreshPhase()
	return out, nil
}

// CheckRally reports whether rec can be applied to the current state.
func (s *MatchSession) CheckRally(rec RallyRecord) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	if s.court.SetterPendingFor != "" {
		return ErrSetterMissing
	}
	return rec.Validate()
}

// ApplyRally applies the scoring effect of a recorded rally.
// Records that carry no point leave the state and the rally id unchanged.
func (s *MatchSession) ApplyRally(rec RallyRecord) (PointOutcome, error) {
	if err := s.CheckRally(rec); err != nil {
		return PointOutcome{}, err
	}
	var out PointOutcome
	var err error
	switch PointDelta(&rec) {
	case 1:
		out, err = s.AddPoint(true)
	case -1:
		out, err = s.AddPoint(false)
	}
	if err != nil {
		return PointOutcome{}, err
	}
	s.logMark = max(s.logMark, rec.PlayID)
	return out, nil
}

// StampRally fills in the fields of rec that come from the current state.
func (s *MatchSession) StampRally(rec RallyRecord) RallyRecord {
	rec.MatchID = s.state.MatchID
	rec.SetNumber = s.state.SetNumber
	rec.RallyID = s.state.NextRallyID
	rec.RotationSlot = s.state.RotationSlot
	if rec.SetterID == "" {
		rec.SetterID = s.state.ActiveSetterID
	}
	if rec.Result == "" {
		if r, ok := InferResult(rec.AttackType); ok {
			rec.Result = r
		}
	}
	rec.Reason = Attribute(rec.AttackType, rec.Result).Reason
	return rec
}

// ApplyCorrection swaps the score effect of old for that of updated without rotating.
// A nil updated means old was deleted. Undo restores the score and writes old back.
func (s *MatchSession) ApplyCorrection(old, updated *RallyRecord) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	replaced := *old
	s.snapshot(&replaced)
	s.state.ApplyCorrection(old, updated)
	s.refreshPhase()
	return nil
}

// AdjustScore is the manual scoreboard control. A positive step behaves like AddPoint,
// a negative step removes a point from team and hands the serve to the other side.
func (s *MatchSession) AdjustScore(team Team, step int) (PointOutcome, error) {
	if !team.Valid() || (step != 1 && step != -1) {
		return PointOutcome{}, fmt.Errorf("%w: %s %+d", ErrInvalidAdjustment, team, step)
	}
	if step > 0 {
		return s.AddPoint(team == TeamOurs)
	}
	if err := s.CheckInPlay(); err != nil {
		return PointOutcome{}, err
	}
	s.snapshot(nil)
	s.state.removePoint(team)
	s.refreshPhase()
	return PointOutcome{}, nil
}

// ToggleServe flips which team is serving.
func (s *MatchSession) ToggleServe() error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	s.state.OurServe = !s.state.OurServe
	return nil
}

// PeekUndo returns the snapshot Undo would restore.
func (s *MatchSession) PeekUndo() (Snapshot, error) {
	if err := s.CheckInPlay(); err != nil {
		return Snapshot{}, err
	}
	snap, ok := s.history.Peek()
	if !ok {
		return Snapshot{}, ErrNothingToUndo
	}
	return snap, nil
}

// Undo replaces the scoreboard and court with the most recent snapshot.
func (s *MatchSession) Undo() (Snapshot, error) {
	if err := s.CheckInPlay(); err != nil {
		return Snapshot{}, err
	}
	snap, ok := s.history.Pop()
	if !ok {
		return Snapshot{}, ErrNothingToUndo
	}
	s.state = snap.State
	s.court = snap.Court.Clone()
	s.refreshPhase()
	return snap, nil
}

// CanFinishSet reports whether the current score closes the set.
func (s *MatchSession) CanFinishSet() bool {
	return s.state.CheckSetEndCondition(s.rules)
}

// PendingSetResult returns what FinishSet would record, without changing anything.
func (s *MatchSession) PendingSetResult() (SetResult, error) {
	if err := s.CheckInPlay(); err != nil {
		return SetResult{}, err
	}
	if !s.CanFinishSet() {
		return SetResult{}, ErrSetNotOver
	}
	return s.state.setResult(), nil
}

// FinishSet closes the set and credits it to the winner.
func (s *MatchSession) FinishSet() (SetResult, error) {
	res, err := s.PendingSetResult()
	if err != nil {
		return SetResult{}, err
	}
	if res.Result == SetWon {
		s.state.OurSetsWon++
	} else {
		s.state.OpponentSetsWon++
	}
	s.history.Clear()
	s.phase = PhaseSetClosed
	if s.state.decided(s.rules) {
		s.phase = PhaseMatchEnded
	}
	return res, nil
}

// DiscardSet throws away the current set. The caller supplies the rally id to resume from.
func (s *MatchSession) DiscardSet(nextRallyID int) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	if nextRallyID < 1 {
		nextRallyID = 1
	}
	s.state.OurScore = 0
	s.state.OpponentScore = 0
	s.state.RotationSlot = 1
	s.state.NextRallyID = nextRallyID
	s.lineup = Lineup{}
	s.court = newCourt(Lineup{})
	s.history.Clear()
	s.phase = PhaseNextSetSetup
	return nil
}
