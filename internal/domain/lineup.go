package domain

import "fmt"

// RosterEntry fixes a player to a starting slot for the duration of a set.
type RosterEntry struct {
	StartingSlot int    `json:"starting_slot"`
	PlayerID     string `json:"player_id"`
	Role         Role   `json:"role"`
}

// Lineup is the starting six plus the liberos registered for a set.
type Lineup struct {
	Starters []RosterEntry `json:"starters"`
	Liberos  []string      `json:"liberos"`
}

// Validate checks that the lineup fills every slot once with distinct players and one setter.
func (l Lineup) Validate() error {
	if len(l.Starters) != CourtSlots {
		return fmt.Errorf("%w: %d starters, want %d", ErrInvalidLineup, len(l.Starters), CourtSlots)
	}
	seenSlot := make(map[int]bool, CourtSlots)
	seenPlayer := make(map[string]bool, CourtSlots+len(l.Liberos))
	setters := 0
	for _, e := range l.Starters {
		if !ValidSlot(e.StartingSlot) {
			return fmt.Errorf("%w: slot %d", ErrInvalidLineup, e.StartingSlot)
		}
		if seenSlot[e.StartingSlot] {
			return fmt.Errorf("%w: slot %d assigned twice", ErrInvalidLineup, e.StartingSlot)
		}
		if e.PlayerID == "" || seenPlayer[e.PlayerID] {
			return fmt.Errorf("%w: player %q missing or repeated", ErrInvalidLineup, e.PlayerID)
		}
		if !e.Role.Valid() {
			return fmt.Errorf("%w: role %q for %s", ErrInvalidLineup, e.Role, e.PlayerID)
		}
		if e.Role == RoleSetter {
			setters++
		}
		seenSlot[e.StartingSlot] = true
		seenPlayer[e.PlayerID] = true
	}
	if setters != 1 {
		return fmt.Errorf("%w: %d setters, want 1", ErrInvalidLineup, setters)
	}
	for _, id := range l.Liberos {
		if id == "" || seenPlayer[id] {
			return fmt.Errorf("%w: libero %q missing or repeated", ErrInvalidLineup, id)
		}
		seenPlayer[id] = true
	}
	return nil
}

// Setter returns the player designated S.
func (l Lineup) Setter() string {
	for _, e := range l.Starters {
		if e.Role == RoleSetter {
			return e.PlayerID
		}
	}
	return ""
}

// Rotated moves every starter one slot in serving order, so the player in slot 2 starts in slot 1.
func (l Lineup) Rotated() Lineup {
	out := l.Clone()
	for i := range out.Starters {
		slot := out.Starters[i].StartingSlot - 1
		if slot < 1 {
			slot = CourtSlots
		}
		out.Starters[i].StartingSlot = slot
	}
	return out
}

// Clone returns a deep copy of l.
func (l Lineup) Clone() Lineup {
	return Lineup{
		Starters: append([]RosterEntry(nil), l.Starters...),
		Liberos:  append([]string(nil), l.Liberos...),
	}
}
