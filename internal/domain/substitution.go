package domain

import "fmt"

// Substitute replaces an on-court player with a benched one.
// The incoming player takes over the slot and active role. When the setter leaves,
// DesignateSetter must be called before the next rally is recorded.
func (s *MatchSession) Substitute(outID, inID string) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	if outID == "" || inID == "" || outID == inID {
		return fmt.Errorf("%w: substitution %q for %q", ErrInvalidLineup, inID, outID)
	}
	if s.IsRegisteredLibero(outID) || s.IsRegisteredLibero(inID) {
		return ErrLiberoSubstitution
	}
	slot, ok := s.court.slotOf(outID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOnCourt, outID)
	}
	if _, bound := s.court.Bindings[outID]; bound {
		return fmt.Errorf("%w: %s", ErrAlreadyReplaced, outID)
	}
	if _, onCourt := s.court.slotOf(inID); onCourt {
		return fmt.Errorf("%w: %s", ErrAlreadyOnCourt, inID)
	}

	role := s.court.Statuses[outID]
	s.court.Occupants[slot-1] = inID
	s.court.Statuses[outID] = RoleNone
	s.court.Statuses[inID] = role
	s.court.Designated[inID] = role

	if outID == s.state.ActiveSetterID {
		s.state.ActiveSetterID = ""
		s.court.SetterPendingFor = inID
	}
	return nil
}

// SetterPending reports whether a setter hand-off is outstanding.
func (s *MatchSession) SetterPending() bool {
	return s.court.SetterPendingFor != ""
}

// DesignateSetter completes a setter hand-off. If the chosen player is not the
// incoming substitute, the two exchange roles.
func (s *MatchSession) DesignateSetter(playerID string) error {
	if err := s.CheckInPlay(); err != nil {
		return err
	}
	incoming := s.court.SetterPendingFor
	if incoming == "" {
		return ErrNoSetterPending
	}
	if _, ok := s.court.slotOf(playerID); !ok {
		return fmt.Errorf("%w: %s", ErrNotOnCourt, playerID)
	}
	if _, bound := s.court.Bindings[playerID]; bound {
		return fmt.Errorf("%w: %s", ErrAlreadyReplaced, playerID)
	}

	if playerID != incoming {
		prev := s.court.Statuses[playerID]
		s.court.Statuses[incoming] = prev
		s.court.Designated[incoming] = prev
	}
	s.court.Statuses[playerID] = RoleSetter
	s.court.Designated[playerID] = RoleSetter
	s.state.ActiveSetterID = playerID
	s.court.SetterPendingFor = ""
	return nil
}
