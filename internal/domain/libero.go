package domain

import (
	"fmt"
	"slices"
)

// CourtSpot describes who stands at a visual position.
type CourtSpot struct {
	Visual       int    `json:"visual"`
	StartingSlot int    `json:"starting_slot"`
	PlayerID     string `json:"player_id"`
	// LiberoID is set while a libero replaces PlayerID.
	LiberoID string `json:"libero_id,omitempty"`
}

// IsRegisteredLibero reports whether playerID is a libero for the current set.
func (s *MatchSession) IsRegisteredLibero(playerID string) bool {
	return slices.Contains(s.lineup.Liberos, playerID)
}

// visualOf returns the current visual position of the player occupying a starting slot.
func (s *MatchSession) visualOf(slot int) int {
	return VisualPosition(slot, s.state.RotationSlot)
}

// Spots returns the six court positions in visual order.
func (s *MatchSession) Spots() []CourtSpot {
	spots := make([]CourtSpot, CourtSlots)
	for i, id := range s.court.Occupants {
		slot := i + 1
		v := s.visualOf(slot)
		spots[v-1] = CourtSpot{
			Visual:       v,
			StartingSlot: slot,
			PlayerID:     id,
			LiberoID:     s.court.Bindings[id],
		}
	}
	return spots
}

// BackRow lists the back-row spots in the order 1, 6, 5.
func (s *MatchSession) BackRow() []CourtSpot {
	spots := s.Spots()
	out := make([]CourtSpot, 0, len(backRowOrder))
	for _, v := range backRowOrder {
		out = append(out, spots[v-1])
	}
	return out
}

// LiberoIn sends liberoID on court in place of a back-row player.
func (s *MatchSession) LiberoIn(originalID, liberoID string) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	if !s.IsRegisteredLibero(liberoID) {
		return fmt.Errorf("%w: %s", ErrNotLibero, liberoID)
	}
	slot, ok := s.court.slotOf(originalID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOnCourt, originalID)
	}
	if _, bound := s.court.Bindings[originalID]; bound {
		return fmt.Errorf("%w: %s", ErrAlreadyReplaced, originalID)
	}
	if other, bound := s.court.Bindings.originalFor(liberoID); bound {
		return fmt.Errorf("%w: %s replaces %s", ErrLiberoAlreadyBound, liberoID, other)
	}
	if !IsBackRow(s.visualOf(slot)) {
		return fmt.Errorf("%w: %s at position %d", ErrFrontRow, originalID, s.visualOf(slot))
	}

	s.court.Bindings[originalID] = liberoID
	s.court.Statuses[liberoID] = RoleLibero
	s.court.Statuses[originalID] = RoleNone
	return nil
}

// LiberoOut brings the original player back and benches the libero replacing them.
// It returns the libero that left.
func (s *MatchSession) LiberoOut(originalID string) (string, error) {
	if err := s.CheckInPlay(); err != nil {
		return "", err
	}
	liberoID, ok := s.court.Bindings[originalID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBinding, originalID)
	}
	s.releaseLibero(originalID, liberoID)
	return liberoID, nil
}

// SwapLibero replaces the libero bound to originalID with another registered libero.
func (s *MatchSession) SwapLibero(originalID, liberoID string) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	current, ok := s.court.Bindings[originalID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoBinding, originalID)
	}
	if !s.IsRegisteredLibero(liberoID) {
		return fmt.Errorf("%w: %s", ErrNotLibero, liberoID)
	}
	if current == liberoID {
		return nil
	}
	if other, bound := s.court.Bindings.originalFor(liberoID); bound {
		return fmt.Errorf("%w: %s replaces %s", ErrLiberoAlreadyBound, liberoID, other)
	}

	s.court.Bindings[originalID] = liberoID
	s.court.Statuses[current] = RoleNone
	s.court.Statuses[liberoID] = RoleLibero
	return nil
}

func (s *MatchSession) releaseLibero(originalID, liberoID string) {
	delete(s.court.Bindings, originalID)
	s.court.Statuses[liberoID] = RoleNone
	s.court.Statuses[originalID] = s.court.designatedRole(originalID)
}

// ejectFrontRowLiberos closes every binding whose original has rotated into the front row.
// Bindings are visited in slot order so notices are deterministic.
func (s *MatchSession) ejectFrontRowLiberos() []string {
	var notices []string
	for i, originalID := range s.court.Occupants {
		liberoID, bound := s.court.Bindings[originalID]
		if !bound {
			continue
		}
		if v := s.visualOf(i + 1); IsFrontRow(v) {
			s.releaseLibero(originalID, liberoID)
			notices = append(notices, fmt.Sprintf("libero %s left the court: %s rotated to front-row position %d", liberoID, originalID, v))
		}
	}
	return notices
}
