package domain

// View is a read-only projection of a session for display.
type View struct {
	Phase         Phase         `json:"phase"`
	State         MatchState    `json:"state"`
	Spots         []CourtSpot   `json:"spots"`
	Bindings      LiberoBinding `json:"bindings"`
	Statuses      PlayerStatus  `json:"statuses"`
	Liberos       []string      `json:"liberos"`
	CanFinishSet  bool          `json:"can_finish_set"`
	UndoDepth     int           `json:"undo_depth"`
	SetterPending bool          `json:"setter_pending"`
}

// View captures the current session state.
func (s *MatchSession) View() View {
	v := View{
		Phase:         s.phase,
		State:         s.state,
		Bindings:      s.court.Bindings.Clone(),
		Statuses:      s.court.Statuses.Clone(),
		Liberos:       append([]string(nil), s.lineup.Liberos...),
		UndoDepth:     s.history.Len(),
		SetterPending: s.SetterPending(),
	}
	if len(s.lineup.Starters) > 0 {
		v.Spots = s.Spots()
		v.CanFinishSet = s.CanFinishSet() && (s.phase == PhaseInProgress || s.phase == PhaseAwaitingSetEnd)
	}
	return v
}
