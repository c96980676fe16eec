package domain

import (
	"errors"
	"testing"
)

func TestLiberoAutoEjectedAtFrontRow(t *testing.T) {
	s := newTestSession(t, TeamOpponent)
	if err := s.LiberoIn("p1", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}

	// Each opponent point followed by ours is one side-out for us.
	notices := 0
	for s.State().RotationSlot != 4 {
		if _, err := s.AddPoint(false); err != nil {
			t.Fatalf("AddPoint(false) error: %v", err)
		}
		out, err := s.AddPoint(true)
		if err != nil {
			t.Fatalf("AddPoint(true) error: %v", err)
		}
		notices += len(out.Notices)

		v := VisualPosition(1, s.State().RotationSlot)
		_, bound := s.Court().Bindings["p1"]
		if IsBackRow(v) && !bound {
			t.Fatalf("binding dropped while p1 still at back-row position %d", v)
		}
	}

	court := s.Court()
	if _, bound := court.Bindings["p1"]; bound {
		t.Fatal("binding still present after p1 reached the front row")
	}
	if court.Statuses["p1"] != RoleSetter {
		t.Fatalf("p1 status = %q, want S", court.Statuses["p1"])
	}
	if court.Statuses["L1"] != RoleNone {
		t.Fatalf("L1 status = %q, want benched", court.Statuses["L1"])
	}
	if notices != 1 {
		t.Fatalf("notices = %d, want exactly 1", notices)
	}
}

func TestLiberoIn(t *testing.T) {
	tests := []struct {
		name     string
		original string
		libero   string
		wantErr  error
	}{
		{name: "BackRowSix", original: "p6", libero: "L1"},
		{name: "BackRowFive", original: "p5", libero: "L1"},
		{name: "FrontRow", original: "p3", libero: "L1", wantErr: ErrFrontRow},
		{name: "NotLibero", original: "p6", libero: "p2", wantErr: ErrNotLibero},
		{name: "NotOnCourt", original: "p9", libero: "L1", wantErr: ErrNotOnCourt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, TeamOurs)
			err := s.LiberoIn(tt.original, tt.libero)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LiberoIn() error = %v, want %v", err, tt.wantErr)
				}
				if len(s.Court().Bindings) != 0 {
					t.Fatal("failed LiberoIn() created a binding")
				}
				return
			}
			if err != nil {
				t.Fatalf("LiberoIn() error: %v", err)
			}
			court := s.Court()
			if court.Bindings[tt.original] != tt.libero {
				t.Fatalf("binding = %v, want %s->%s", court.Bindings, tt.original, tt.libero)
			}
			if court.Statuses[tt.libero] != RoleLibero || court.Statuses[tt.original] != RoleNone {
				t.Fatalf("statuses = %v", court.Statuses)
			}
		})
	}
}

func TestLiberoRebindRejected(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.LiberoIn("p1", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	if err := s.LiberoIn("p6", "L1"); !errors.Is(err, ErrLiberoAlreadyBound) {
		t.Fatalf("LiberoIn() rebind error = %v, want %v", err, ErrLiberoAlreadyBound)
	}
	if err := s.LiberoIn("p1", "L2"); !errors.Is(err, ErrAlreadyReplaced) {
		t.Fatalf("LiberoIn() second libero error = %v, want %v", err, ErrAlreadyReplaced)
	}
	court := s.Court()
	if len(court.Bindings) != 1 || court.Bindings["p1"] != "L1" {
		t.Fatalf("bindings = %v, want only p1->L1", court.Bindings)
	}
}

func TestLiberoOut(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if _, err := s.LiberoOut("p5"); !errors.Is(err, ErrNoBinding) {
		t.Fatalf("LiberoOut() unbound error = %v, want %v", err, ErrNoBinding)
	}
	if err := s.LiberoIn("p5", "L2"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	libero, err := s.LiberoOut("p5")
	if err != nil {
		t.Fatalf("LiberoOut() error: %v", err)
	}
	if libero != "L2" {
		t.Fatalf("LiberoOut() = %s, want L2", libero)
	}
	court := s.Court()
	if court.Statuses["p5"] != RoleOutsideHitter || court.Statuses["L2"] != RoleNone {
		t.Fatalf("statuses = %v", court.Statuses)
	}
	if err := s.LiberoIn("p6", "L2"); err != nil {
		t.Fatalf("LiberoIn() after release error: %v", err)
	}
}

func TestLiberoOutRestoresDesignatedRole(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.Substitute("p6", "p7"); err != nil {
		t.Fatalf("Substitute() error: %v", err)
	}
	if err := s.LiberoIn("p7", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	if _, err := s.LiberoOut("p7"); err != nil {
		t.Fatalf("LiberoOut() error: %v", err)
	}
	if got := s.Court().Statuses["p7"]; got != RoleMiddleBlocker {
		t.Fatalf("p7 status = %q, want %s", got, RoleMiddleBlocker)
	}
}

func TestSwapLibero(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	if err := s.LiberoIn("p6", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	if err := s.SwapLibero("p6", "L2"); err != nil {
		t.Fatalf("SwapLibero() error: %v", err)
	}
	court := s.Court()
	if court.Bindings["p6"] != "L2" {
		t.Fatalf("binding = %v, want p6->L2", court.Bindings)
	}
	if court.Statuses["L1"] != RoleNone || court.Statuses["L2"] != RoleLibero || court.Statuses["p6"] != RoleNone {
		t.Fatalf("statuses = %v", court.Statuses)
	}

	if err := s.LiberoIn("p5", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	if err := s.SwapLibero("p6", "L1"); !errors.Is(err, ErrLiberoAlreadyBound) {
		t.Fatalf("SwapLibero() to bound libero error = %v, want %v", err, ErrLiberoAlreadyBound)
	}
}

func TestBackRow(t *testing.T) {
	s := newTestSession(t, TeamOurs)
	s.state.RotationSlot = 2

	got := s.BackRow()
	want := []string{"p2", "p1", "p6"}
	if len(got) != len(want) {
		t.Fatalf("BackRow() len = %d, want %d", len(got), len(want))
	}
	for i, spot := range got {
		if spot.PlayerID != want[i] {
			t.Fatalf("BackRow()[%d] = %s, want %s", i, spot.PlayerID, want[i])
		}
		if !IsBackRow(spot.Visual) {
			t.Fatalf("BackRow()[%d] visual %d is not back row", i, spot.Visual)
		}
	}
}

func TestUndoRestoresEjectedLibero(t *testing.T) {
	s := newTestSession(t, TeamOpponent)
	s.state.RotationSlot = 3
	// p1 sits at visual 5 in rotation 3 and reaches the front row on the next side-out.
	if err := s.LiberoIn("p1", "L1"); err != nil {
		t.Fatalf("LiberoIn() error: %v", err)
	}
	out, err := s.AddPoint(true)
	if err != nil {
		t.Fatalf("AddPoint() error: %v", err)
	}
	if len(out.Notices) != 1 {
		t.Fatalf("notices = %v, want one ejection", out.Notices)
	}
	if _, err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	court := s.Court()
	if court.Bindings["p1"] != "L1" || court.Statuses["L1"] != RoleLibero {
		t.Fatalf("court after undo = %+v, want libero restored", court)
	}
}
