package domain

import "testing"

func TestHistoryDropsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Snapshot{State: MatchState{OurScore: i}})
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}

	want := []int{5, 4, 3}
	for _, w := range want {
		s, ok := h.Pop()
		if !ok {
			t.Fatal("Pop() = false, want snapshot")
		}
		if s.State.OurScore != w {
			t.Fatalf("Pop().OurScore = %d, want %d", s.State.OurScore, w)
		}
	}
	if _, ok := h.Pop(); ok {
		t.Fatal("Pop() on exhausted history = true, want false")
	}
}

func TestHistoryStoresCopies(t *testing.T) {
	h := NewHistory(2)
	court := Court{Bindings: LiberoBinding{"p1": "L1"}, Statuses: PlayerStatus{"L1": RoleLibero}}
	h.Push(Snapshot{Court: court})

	court.Bindings["p2"] = "L2"
	court.Statuses["L1"] = RoleNone

	s, _ := h.Peek()
	if len(s.Court.Bindings) != 1 {
		t.Fatalf("stored bindings = %v, want only p1", s.Court.Bindings)
	}
	if s.Court.Statuses["L1"] != RoleLibero {
		t.Fatalf("stored status = %q, want LB", s.Court.Statuses["L1"])
	}

	s.Court.Bindings["p3"] = "L3"
	again, _ := h.Peek()
	if _, ok := again.Court.Bindings["p3"]; ok {
		t.Fatal("Peek() leaked a mutable reference")
	}
}
