package domain

import (
	"errors"
	"reflect"
	"testing"
)

func testLineup() Lineup {
	return Lineup{
		Starters: []RosterEntry{
			{StartingSlot: 1, PlayerID: "p1", Role: RoleSetter},
			{StartingSlot: 2, PlayerID: "p2", Role: RoleOutsideHitter},
			{StartingSlot: 3, PlayerID: "p3", Role: RoleMiddleBlocker},
			{StartingSlot: 4, PlayerID: "p4", Role: RoleOpposite},
			{StartingSlot: 5, PlayerID: "p5", Role: RoleOutsideHitter},
			{StartingSlot: 6, PlayerID: "p6", Role: RoleMiddleBlocker},
		},
		Liberos: []string{"L1", "L2"},
	}
}

func newTestSession(t *testing.T, firstServer Team) *MatchSession {
	t.Helper()
	s := NewMatchSession(DefaultRules())
	if err := s.ResetMatch("m1", testLineup(), firstServer); err != nil {
		t.Fatalf("ResetMatch() error: %v", err)
	}
	return s
}

func TestResetMatch(t *testing.T) {
	s := newTestSession(t, TeamOpponent)
	st := s.State()
	if st.SetNumber != 1 || st.RotationSlot != 1 || st.NextRallyID != 1 {
		t.Fatalf("state = %+v, want set 1 rotation 1 rally 1", st)
	}
	if st.OurServe {
		t.Fatal("OurServe = true, want false when opponent serves first")
	}
	if st.ActiveSetterID != "p1" {
		t.Fatalf("ActiveSetterID = %s, want p1", st.ActiveSetterID)
	}
	if s.Phase() != PhaseInProgress {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseInProgress)
	}
}

func TestAddPointRotatesOnlyOnSideOut(t *testing.T) {
	s := newTestSession(t, TeamOpponent)
	// Mixed sequence of rally winners covering breaks and side-outs for both teams.
	winners := []bool{true, true, false, false, true, false, true, true, true, false, true, false, false, true}

	for i, forUs := range winners {
		before := s.State()
		out, err := s.AddPoint(forUs)
		if err != nil {
			t.Fatalf("step %d: AddPoint() error: %v", i, err)
		}
		after := s.State()

		sideOutForUs := forUs && !before.OurServe
		if out.Rotated != sideOutForUs {
			t.Fatalf("step %d: Rotated = %v, want %v", i, out.Rotated, sideOutForUs)
		}
		wantSlot := before.RotationSlot
		if sideOutForUs {
			wantSlot = AdvanceRotation(before.RotationSlot)
		}
		if after.RotationSlot != wantSlot {
			t.Fatalf("step %d: RotationSlot = %d, want %d", i, after.RotationSlot, wantSlot)
		}
		if after.OurServe != forUs {
			t.Fatalf("step %d: OurServe = %v, want %v", i, after.OurServe, forUs)
		}
		if after.NextRallyID != before.NextRallyID+1 {
			t.Fatalf("step %d: NextRallyID = %d, want %d", i, after.NextRallyID, before.NextRallyID+1)
		}
	}
}

func TestCheckSetEndCondition(t *testing.T) {
	tests := []struct {
		set  int
		our  int
		opp  int
		want bool
	}{
		{3, 25, 23, false},
		{3, 25, 20, true},
		{5, 15, 13, true},
		{5, 15, 14, false},
		{1, 24, 22, false},
		{2, 26, 24, true},
		{4, 23, 25, true},
		{5, 13, 15, true},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		m := MatchState{SetNumber: tt.set, OurScore: tt.our, OpponentScore: tt.opp}
		if got := m.CheckSetEndCondition(rules); got != tt.want {
			t.Fatalf("CheckSetEndCondition(set %d, %d-%d) = %v, want %v", tt.set, tt.our, tt.opp, got, tt.want)
		}
	}
}

func TestSetPointEndToEnd(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	s.state.OurScore = 24
	s.state.OpponentScore = 23
	s.state.RotationSlot = 3

	out, err := s.AddPoint(true)
	if err != nil {
		t.Fatalf("AddPoint() error: %v", err)
	}
	st := s.State()
	if st.OurScore != 25 || st.OpponentScore != 23 {
		t.Fatalf("score = %d-%d, want 25-23", st.OurScore, st.OpponentScore)
	}
	if !st.OurServe {
		t.Fatal("OurServe = false, want serve kept")
	}
	if out.Rotated || st.RotationSlot != 3 {
		t.Fatalf("RotationSlot = %d, want unchanged 3", st.RotationSlot)
	}
	if !s.CanFinishSet() {
		t.Fatal("CanFinishSet() = false, want true")
	}
	if s.Phase() != PhaseAwaitingSetEnd {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseAwaitingSetEnd)
	}
}

func TestApplyCorrectionInverse(t *testing.T) {
	records := []*RallyRecord{nil}
	results := []Result{ResultKill, ResultFault, ResultBlocked, ResultContinue, ResultEffective}
	for attack := range attackTypes {
		for _, result := range results {
			records = append(records, &RallyRecord{AttackType: attack, Result: result})
		}
	}

	base := MatchState{OurScore: 7, OpponentScore: 9, RotationSlot: 4, OurServe: true}
	for _, old := range records {
		for _, updated := range records {
			m := base
			m.ApplyCorrection(old, updated)
			m.ApplyCorrection(updated, old)
			if m != base {
				t.Fatalf("correction %v -> %v and back = %+v, want %+v", old, updated, m, base)
			}
		}
	}
}

func TestApplyCorrectionDoesNotRotate(t *testing.T) {
	m := MatchState{OurScore: 3, OpponentScore: 4, RotationSlot: 2, OurServe: false}
	old := &RallyRecord{AttackType: AttackSpike, Result: ResultFault}
	updated := &RallyRecord{AttackType: AttackSpike, Result: ResultKill}

	m.ApplyCorrection(old, updated)
	if m.OurScore != 4 || m.OpponentScore != 3 {
		t.Fatalf("score = %d-%d, want 4-3", m.OurScore, m.OpponentScore)
	}
	if m.RotationSlot != 2 || m.OurServe {
		t.Fatalf("rotation/serve changed: %+v", m)
	}
}

func TestApplyCorrectionClampsAtZero(t *testing.T) {
	m := MatchState{}
	m.ApplyCorrection(&RallyRecord{AttackType: AttackSpike, Result: ResultKill}, nil)
	m.ApplyCorrection(&RallyRecord{AttackType: AttackSpike, Result: ResultFault}, nil)
	if m.OurScore != 0 || m.OpponentScore != 0 {
		t.Fatalf("score = %d-%d, want 0-0", m.OurScore, m.OpponentScore)
	}
}

func TestUndoRestoresEachStep(t *testing.T) {
	s := newTestSession(t, TeamOpponent)
	if err := s.LiberoIn("p6", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}

	winners := []bool{true, false, true, true, false, true, true, false, true, true}
	states := make([]MatchState, 0, len(winners))
	courts := make([]Court, 0, len(winners))
	for _, forUs := range winners {
		states = append(states, s.State())
		courts = append(courts, s.Court())
		if _, err := s.AddPoint(forUs); err != nil {
			t.Fatalf("AddPoint() error: %v", err)
		}
	}

	for i := len(winners) - 1; i >= 0; i-- {
		if _, err := s.Undo(); err != nil {
			t.Fatalf("Undo() step %d error: %v", i, err)
		}
		if got := s.State(); got != states[i] {
			t.Fatalf("Undo() step %d state = %+v, want %+v", i, got, states[i])
		}
		if got := s.Court(); !reflect.DeepEqual(got.Bindings, courts[i].Bindings) {
			t.Fatalf("Undo() step %d bindings = %v, want %v", i, got.Bindings, courts[i].Bindings)
		}
	}

	before := s.State()
	beforeCourt := s.Court()
	if _, err := s.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("Undo() on empty history error = %v, want %v", err, ErrNothingToUndo)
	}
	if s.State() != before || !reflect.DeepEqual(s.Court(), beforeCourt) {
		t.Fatal("failed Undo() mutated state")
	}
}

func TestUndoIsBoundedToHistoryDepth(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	for i := 0; i < 12; i++ {
		if _, err := s.AddPoint(i%3 != 0); err != nil {
			t.Fatalf("AddPoint() error: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if _, err := s.Undo(); err != nil {
			t.Fatalf("Undo() %d error: %v", i+1, err)
		}
	}
	if _, err := s.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("11th Undo() error = %v, want %v", err, ErrNothingToUndo)
	}
	if got := s.State().OurScore + s.State().OpponentScore; got != 2 {
		t.Fatalf("points left after undo = %d, want 2", got)
	}
}

func TestUndoLeavesAwaitingSetEnd(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	s.state.OurScore = 24
	if _, err := s.AddPoint(true); err != nil {
		t.Fatalf("AddPoint() error: %v", err)
	}
	if s.Phase() != PhaseAwaitingSetEnd {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseAwaitingSetEnd)
	}
	if _, err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if s.Phase() != PhaseInProgress {
		t.Fatalf("phase after undo = %s, want %s", s.Phase(), PhaseInProgress)
	}
}

func TestApplyRally(t *testing.T) {
	s := newTestSession(t, TeamOpponent)

	rec := s.StampRally(RallyRecord{AttackType: AttackSpike, Result: ResultContinue, SpikerID: "p2"})
	if rec.RallyID != 1 || rec.SetterID != "p1" || rec.Reason != ReasonNone {
		t.Fatalf("StampRally() = %+v", rec)
	}
	out, err := s.ApplyRally(rec)
	if err != nil {
		t.Fatalf("ApplyRally(continue) error: %v", err)
	}
	if out.Rotated || s.State().NextRallyID != 1 || s.UndoDepth() != 0 {
		t.Fatalf("continue changed state: %+v depth=%d", s.State(), s.UndoDepth())
	}

	rec = s.StampRally(RallyRecord{AttackType: AttackServeAce, SpikerID: "p1"})
	if rec.Result != ResultKill || rec.Reason != ReasonServiceAce {
		t.Fatalf("StampRally(ace) = %+v, want inferred kill", rec)
	}
	if _, err := s.ApplyRally(rec); err != nil {
		t.Fatalf("ApplyRally(ace) error: %v", err)
	}
	if st := s.State(); st.OurScore != 1 || st.RotationSlot != 2 || st.NextRallyID != 2 {
		t.Fatalf("state after ace = %+v", st)
	}

	if _, err := s.ApplyRally(RallyRecord{AttackType: "BOGUS", Result: ResultKill, SpikerID: "p1"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("ApplyRally(bogus) error = %v, want %v", err, ErrInvalidRecord)
	}
}

func TestAdjustScore(t *testing.T) {
	s := newTestSession(t, TeamOurs)

	if _, err := s.AdjustScore(TeamOpponent, -1); err != nil {
		t.Fatalf("AdjustScore() error: %v", err)
	}
	if st := s.State(); st.OpponentScore != 0 || !st.OurServe {
		t.Fatalf("state = %+v, want clamped score and our serve", st)
	}

	if _, err := s.AdjustScore(TeamOpponent, 1); err != nil {
		t.Fatalf("AdjustScore() error: %v", err)
	}
	if _, err := s.AdjustScore(TeamOurs, 1); err != nil {
		t.Fatalf("AdjustScore() error: %v", err)
	}
	if st := s.State(); st.OurScore != 1 || st.OpponentScore != 1 || st.RotationSlot != 2 {
		t.Fatalf("state = %+v, want 1-1 at rotation 2", st)
	}

	if _, err := s.AdjustScore(TeamOurs, -1); err != nil {
		t.Fatalf("AdjustScore() error: %v", err)
	}
	if st := s.State(); st.OurScore != 0 || st.OurServe || st.RotationSlot != 2 {
		t.Fatalf("state = %+v, want 0-1 opponent serving, rotation kept", st)
	}

	if _, err := s.AdjustScore(TeamOurs, 2); err == nil {
		t.Fatal("AdjustScore(+2) error = nil, want error")
	}
}

func TestFinishSetAndProceed(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if _, err := s.FinishSet(); !errors.Is(err, ErrSetNotOver) {
		t.Fatalf("FinishSet() at 0-0 error = %v, want %v", err, ErrSetNotOver)
	}

	s.state.OurScore, s.state.OpponentScore = 25, 20
	s.state.RotationSlot = 5
	s.state.NextRallyID = 46
	res, err := s.FinishSet()
	if err != nil {
		t.Fatalf("FinishSet() error: %v", err)
	}
	if res.Result != SetWon || res.OurScore != 25 || res.OpponentScore != 20 || res.SetNumber != 1 {
		t.Fatalf("FinishSet() = %+v", res)
	}
	if s.State().OurSetsWon != 1 || s.Phase() != PhaseSetClosed {
		t.Fatalf("after finish: state=%+v phase=%s", s.State(), s.Phase())
	}
	if _, err := s.AddPoint(true); !errors.Is(err, ErrSetNotInPlay) {
		t.Fatalf("AddPoint() on closed set error = %v, want %v", err, ErrSetNotInPlay)
	}

	if err := s.ProceedToNextSet(testLineup().Rotated(), TeamOpponent); err != nil {
		t.Fatalf("ProceedToNextSet() error: %v", err)
	}
	st := s.State()
	if st.SetNumber != 2 || st.OurScore != 0 || st.OpponentScore != 0 || st.RotationSlot != 1 {
		t.Fatalf("next set state = %+v", st)
	}
	if st.NextRallyID != 46 || st.OurSetsWon != 1 || st.OurServe {
		t.Fatalf("carried counters = %+v", st)
	}
	if s.UndoDepth() != 0 || s.Phase() != PhaseInProgress {
		t.Fatalf("depth=%d phase=%s, want fresh set", s.UndoDepth(), s.Phase())
	}
}

func TestMatchEndsAtSetsToWin(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	for set := 1; set <= 3; set++ {
		s.state.OurScore, s.state.OpponentScore = 25, 10
		if _, err := s.FinishSet(); err != nil {
			t.Fatalf("FinishSet() set %d error: %v", set, err)
		}
		if set < 3 {
			if err := s.ProceedToNextSet(testLineup(), TeamOurs); err != nil {
				t.Fatalf("ProceedToNextSet() error: %v", err)
			}
		}
	}
	if s.Phase() != PhaseMatchEnded {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseMatchEnded)
	}
	if err := s.ProceedToNextSet(testLineup(), TeamOurs); !errors.Is(err, ErrMatchEnded) {
		t.Fatalf("ProceedToNextSet() after match end error = %v, want %v", err, ErrMatchEnded)
	}
}

func TestRestore(t *testing.T) {
	tests := []struct {
		name      string
		summaries []SetSummary
		lastRally int
		wantSet   int
		wantOur   int
		wantOpp   int
		wantRally int
		wantPhase Phase
	}{
		{
			name:      "NothingPersisted",
			wantSet:   1,
			wantRally: 1,
			wantPhase: PhaseNextSetSetup,
		},
		{
			name: "MidMatch",
			summaries: []SetSummary{
				{SetNumber: 1, Result: SetWon},
				{SetNumber: 2, Result: SetLost},
				{SetNumber: 3, Result: SetWon},
				{SetNumber: 4, Result: SetOpen, OurFinalScore: 3},
			},
			lastRally: 87,
			wantSet:   4,
			wantOur:   2,
			wantOpp:   1,
			wantRally: 88,
			wantPhase: PhaseNextSetSetup,
		},
		{
			name: "Decided",
			summaries: []SetSummary{
				{SetNumber: 1, Result: SetLost},
				{SetNumber: 2, Result: SetLost},
				{SetNumber: 3, Result: SetLost},
			},
			lastRally: 120,
			wantSet:   4,
			wantOpp:   3,
			wantRally: 121,
			wantPhase: PhaseMatchEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMatchSession(DefaultRules())
			s.Restore("m1", tt.summaries, tt.lastRally, int64(tt.lastRally))
			st := s.State()
			if st.SetNumber != tt.wantSet || st.NextRallyID != tt.wantRally {
				t.Fatalf("set=%d rally=%d, want set=%d rally=%d", st.SetNumber, st.NextRallyID, tt.wantSet, tt.wantRally)
			}
			if st.OurSetsWon != tt.wantOur || st.OpponentSetsWon != tt.wantOpp {
				t.Fatalf("sets = %d-%d, want %d-%d", st.OurSetsWon, st.OpponentSetsWon, tt.wantOur, tt.wantOpp)
			}
			if st.OurScore != 0 || st.OpponentScore != 0 {
				t.Fatalf("score = %d-%d, want 0-0", st.OurScore, st.OpponentScore)
			}
			if s.Phase() != tt.wantPhase {
				t.Fatalf("phase = %s, want %s", s.Phase(), tt.wantPhase)
			}
		})
	}
}

func TestStartSetAfterRestore(t *testing.T) {
	s := NewMatchSession(DefaultRules())
	s.Restore("m1", []SetSummary{{SetNumber: 1, Result: SetWon}}, 30, 42)
	if _, err := s.AddPoint(true); !errors.Is(err, ErrSetNotInPlay) {
		t.Fatalf("AddPoint() before StartSet error = %v, want %v", err, ErrSetNotInPlay)
	}
	if err := s.StartSet(testLineup(), TeamOurs); err != nil {
		t.Fatalf("StartSet() error: %v", err)
	}
	st := s.State()
	if st.SetNumber != 2 || st.NextRallyID != 31 || st.RotationSlot != 1 || st.ActiveSetterID != "p1" {
		t.Fatalf("state = %+v", st)
	}
}

func TestRestoreSetsLogMark(t *testing.T) {
	s := NewMatchSession(DefaultRules())
	s.Restore("m1", []SetSummary{{SetNumber: 1, Result: SetWon}}, 30, 42)
	if s.LogMark() != 42 {
		t.Fatalf("LogMark() = %d, want 42", s.LogMark())
	}
	if err := s.StartSet(testLineup(), TeamOurs); err != nil {
		t.Fatalf("StartSet() error: %v", err)
	}
	rec := s.StampRally(RallyRecord{AttackType: AttackServe, Result: ResultContinue, SpikerID: "p1"})
	rec.PlayID = 43
	if _, err := s.ApplyRally(rec); err != nil {
		t.Fatalf("ApplyRally() error: %v", err)
	}
	if s.LogMark() != 43 || s.UndoDepth() != 0 {
		t.Fatalf("LogMark() = %d depth %d, want 43 and no snapshot", s.LogMark(), s.UndoDepth())
	}
}

func TestApplyCorrectionIsUndoable(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	rec := s.StampRally(RallyRecord{AttackType: AttackSpike, Result: ResultKill, SpikerID: "p2"})
	rec.PlayID = 1
	if _, err := s.ApplyRally(rec); err != nil {
		t.Fatalf("ApplyRally() error: %v", err)
	}
	updated := rec
	updated.Result = ResultFault
	if err := s.ApplyCorrection(&rec, &updated); err != nil {
		t.Fatalf("ApplyCorrection() error: %v", err)
	}
	if st := s.State(); st.OurScore != 0 || st.OpponentScore != 1 {
		t.Fatalf("score = %d-%d, want 0-1", st.OurScore, st.OpponentScore)
	}

	snap, err := s.Undo()
	if err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if snap.Replaced == nil || snap.Replaced.Result != ResultKill || snap.LogMark != 1 {
		t.Fatalf("snapshot = %+v, want the replaced kill at mark 1", snap)
	}
	if st := s.State(); st.OurScore != 1 || st.OpponentScore != 0 {
		t.Fatalf("score after undo = %d-%d, want 1-0", st.OurScore, st.OpponentScore)
	}
}

func TestSessionSentinelErrors(t *testing.T) {
	s := NewMatchSession(DefaultRules())
	if err := s.ResetMatch("", testLineup(), TeamOurs); !errors.Is(err, ErrMissingMatchID) {
		t.Fatalf("ResetMatch() error = %v, want %v", err, ErrMissingMatchID)
	}
	s = newTestSession(t, TeamOurs)
	if _, err := s.AdjustScore(TeamOurs, 2); !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("AdjustScore() error = %v, want %v", err, ErrInvalidAdjustment)
	}
	rules := DefaultRules()
	rules.HistoryDepth = 0
	if err := rules.Validate(); !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrInvalidRules)
	}
}

func TestDiscardSet(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	for i := 0; i < 4; i++ {
		if _, err := s.AddPoint(i%2 == 0); err != nil {
			t.Fatalf("AddPoint() error: %v", err)
		}
	}
	if err := s.DiscardSet(1); err != nil {
		t.Fatalf("DiscardSet() error: %v", err)
	}
	st := s.State()
	if st.OurScore != 0 || st.OpponentScore != 0 || st.NextRallyID != 1 || st.SetNumber != 1 {
		t.Fatalf("state = %+v, want set 1 reset", st)
	}
	if s.Phase() != PhaseNextSetSetup || s.UndoDepth() != 0 {
		t.Fatalf("phase=%s depth=%d", s.Phase(), s.UndoDepth())
	}
}
