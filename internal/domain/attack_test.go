package domain

import (
	"errors"
	"testing"
)

func TestDetermineAttackType(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	// Rotation 1: p1 back (1), p2 front (2), p3 front (3), p4 front (4), p5 back (5), p6 back (6).
	tests := []struct {
		spiker string
		area   TossArea
		want   AttackType
	}{
		{"p3", TossAreaA, AttackAQuick},
		{"p6", TossAreaC, AttackCQuick},
		{"p2", TossAreaB, AttackBSemi},
		{"p4", TossAreaA, AttackASemi},
		{"p5", TossAreaBack, AttackBack},
		{"p2", TossAreaBack, AttackSpike},
		{"p2", TossAreaLeft, AttackLeft},
		{"p4", TossAreaRight, AttackRight},
		{"p1", TossAreaA, AttackSpike},
		{"p2", TossAreaUnknown, AttackSpike},
		{"nobody", TossAreaA, AttackUnknown},
	}

	for _, tt := range tests {
		if got := s.DetermineAttackType(tt.spiker, tt.area); got != tt.want {
			t.Fatalf("DetermineAttackType(%s, %s) = %s, want %s", tt.spiker, tt.area, got, tt.want)
		}
	}
}

func TestDetermineAttackTypeFollowsLibero(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.LiberoIn("p5", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	if got := s.DetermineAttackType("L1", TossAreaBack); got != AttackBack {
		t.Fatalf("DetermineAttackType(L1, BACK) = %s, want %s", got, AttackBack)
	}
}

func TestCheckAttackLegality(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.LiberoIn("p6", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}

	tests := []struct {
		name string
		rec  RallyRecord
		want int
	}{
		{"FrontRowQuick", RallyRecord{SpikerID: "p3", AttackType: AttackAQuick}, 0},
		{"BackRowQuick", RallyRecord{SpikerID: "p5", AttackType: AttackBQuick}, 1},
		{"BackRowPipe", RallyRecord{SpikerID: "p5", AttackType: AttackBack}, 0},
		{"LiberoLeft", RallyRecord{SpikerID: "L1", AttackType: AttackLeft}, 2},
		{"LiberoServe", RallyRecord{SpikerID: "L1", AttackType: AttackServe}, 0},
		{"NoSpiker", RallyRecord{SpikerID: SpikerNone, AttackType: AttackSpike}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CheckAttackLegality(tt.rec); len(got) != tt.want {
				t.Fatalf("CheckAttackLegality() = %v, want %d notices", got, tt.want)
			}
		})
	}
}

func TestGradePass(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.LiberoIn("p6", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}

	tests := []struct {
		zone   PassPosition
		tosser string
		want   PassPosition
	}{
		{PassA, "p1", PassA},
		{PassB, "L1", PassLibero},
		{PassA, "p4", PassOther},
		{PassChance, "L1", PassChance},
		{PassS2, "", PassS2},
	}

	for _, tt := range tests {
		if got := s.GradePass(tt.zone, tt.tosser); got != tt.want {
			t.Fatalf("GradePass(%s, %s) = %s, want %s", tt.zone, tt.tosser, got, tt.want)
		}
	}
}

func TestSubstituteSetterHandOff(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.Substitute("p1", "p7"); err != nil {
		t.Fatalf("Substitute() error: %v", err)
	}
	if !s.SetterPending() {
		t.Fatal("SetterPending() = false after setter left")
	}

	rec := s.StampRally(RallyRecord{AttackType: AttackSpike, Result: ResultKill, SpikerID: "p2"})
	if _, err := s.ApplyRally(rec); !errors.Is(err, ErrSetterMissing) {
		t.Fatalf("ApplyRally() error = %v, want %v", err, ErrSetterMissing)
	}

	if err := s.DesignateSetter("p2"); err != nil {
		t.Fatalf("DesignateSetter() error: %v", err)
	}
	court := s.Court()
	if court.Statuses["p2"] != RoleSetter || court.Statuses["p7"] != RoleOutsideHitter {
		t.Fatalf("statuses = %v, want p2 S and p7 OH", court.Statuses)
	}
	if s.State().ActiveSetterID != "p2" || s.SetterPending() {
		t.Fatalf("setter = %s pending=%v", s.State().ActiveSetterID, s.SetterPending())
	}
	if court.Occupants[0] != "p7" {
		t.Fatalf("slot 1 occupant = %s, want p7", court.Occupants[0])
	}
	if _, err := s.ApplyRally(s.StampRally(rec)); err != nil {
		t.Fatalf("ApplyRally() after hand-off error: %v", err)
	}
}

func TestSubstituteIncomingBecomesSetter(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.Substitute("p1", "p7"); err != nil {
		t.Fatalf("Substitute() error: %v", err)
	}
	if err := s.DesignateSetter("p7"); err != nil {
		t.Fatalf("DesignateSetter() error: %v", err)
	}
	if got := s.Court().Statuses["p7"]; got != RoleSetter {
		t.Fatalf("p7 status = %q, want S", got)
	}
}

func TestSubstituteRejects(t *testing.T) {
	tests := []struct {
		name    string
		out, in string
		wantErr error
	}{
		{"OutNotOnCourt", "p9", "p7", ErrNotOnCourt},
		{"InAlreadyOnCourt", "p2", "p3", ErrAlreadyOnCourt},
		{"LiberoIncoming", "p2", "L1", ErrLiberoSubstitution},
		{"SamePlayer", "p2", "p2", ErrInvalidLineup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, TeamOurs)
			if err := s.Substitute(tt.out, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Substitute(%s, %s) error = %v, want %v", tt.out, tt.in, err, tt.wantErr)
			}
		})
	}

	s := newTestSession(t, TeamOurs)
	if err := s.DesignateSetter("p2"); !errors.Is(err, ErrNoSetterPending) {
		t.Fatalf("DesignateSetter() error = %v, want %v", err, ErrNoSetterPending)
	}
}

func TestLineupValidate(t *testing.T) {
	valid := testLineup()
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	dupSlot := testLineup()
	dupSlot.Starters[1].StartingSlot = 1
	noSetter := testLineup()
	noSetter.Starters[0].Role = RoleOpposite
	liberoStarter := testLineup()
	liberoStarter.Liberos = []string{"p3"}
	short := testLineup()
	short.Starters = short.Starters[:5]

	for name, l := range map[string]Lineup{
		"DuplicateSlot": dupSlot,
		"NoSetter":      noSetter,
		"LiberoStarter": liberoStarter,
		"Short":         short,
	} {
		if err := l.Validate(); !errors.Is(err, ErrInvalidLineup) {
			t.Fatalf("%s: Validate() error = %v, want %v", name, err, ErrInvalidLineup)
		}
	}
}

func TestLineupRotated(t *testing.T) {
	l := testLineup().Rotated()
	for _, e := range l.Starters {
		switch e.PlayerID {
		case "p1":
			if e.StartingSlot != 6 {
				t.Fatalf("p1 slot = %d, want 6", e.StartingSlot)
			}
		case "p2":
			if e.StartingSlot != 1 {
				t.Fatalf("p2 slot = %d, want 1", e.StartingSlot)
			}
		}
	}
	if testLineup().Starters[0].StartingSlot != 1 {
		t.Fatal("Rotated() mutated the receiver")
	}
}
