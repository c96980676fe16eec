package domain

// LiberoBinding maps an original player to the libero currently replacing them.
type LiberoBinding map[string]string

// Clone returns an independent copy of b.
func (b LiberoBinding) Clone() LiberoBinding {
	out := make(LiberoBinding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// originalFor returns the player a libero is replacing.
func (b LiberoBinding) originalFor(liberoID string) (string, bool) {
	for original, libero := range b {
		if libero == liberoID {
			return original, true
		}
	}
	return "", false
}

// PlayerStatus holds each player's active position. RoleNone means benched.
type PlayerStatus map[string]Role

// Clone returns an independent copy of p.
func (p PlayerStatus) Clone() PlayerStatus {
	out := make(PlayerStatus, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Court is everything about who is on the floor that can change during a set.
type Court struct {
	// Occupants holds the non-libero player in each starting slot, indexed by slot-1.
	Occupants  [CourtSlots]string
	Bindings   LiberoBinding
	Statuses   PlayerStatus
	Designated map[string]Role
	// SetterPendingFor is the incoming substitute waiting for a setter hand-off.
	SetterPendingFor string
}

func newCourt(l Lineup) Court {
	c := Court{
		Bindings:   make(LiberoBinding),
		Statuses:   make(PlayerStatus, CourtSlots+len(l.Liberos)),
		Designated: make(map[string]Role, CourtSlots),
	}
	for _, e := range l.Starters {
		c.Occupants[e.StartingSlot-1] = e.PlayerID
		c.Statuses[e.PlayerID] = e.Role
		c.Designated[e.PlayerID] = e.Role
	}
	for _, id := range l.Liberos {
		c.Statuses[id] = RoleNone
	}
	return c
}

// Clone returns a deep copy of c.
func (c Court) Clone() Court {
	designated := make(map[string]Role, len(c.Designated))
	for k, v := range c.Designated {
		designated[k] = v
	}
	return Court{
		Occupants:        c.Occupants,
		Bindings:         c.Bindings.Clone(),
		Statuses:         c.Statuses.Clone(),
		Designated:       designated,
		SetterPendingFor: c.SetterPendingFor,
	}
}

// slotOf returns the starting slot a player occupies.
func (c Court) slotOf(playerID string) (int, bool) {
	for i, id := range c.Occupants {
		if id != "" && id == playerID {
			return i + 1, true
		}
	}
	return 0, false
}

// courtSlotOf resolves a player on the floor to a starting slot, following libero bindings.
func (c Court) courtSlotOf(playerID string) (int, bool) {
	if original, ok := c.Bindings.originalFor(playerID); ok {
		return c.slotOf(original)
	}
	if c.Bindings[playerID] != "" {
		return 0, false
	}
	return c.slotOf(playerID)
}

// designatedRole returns the role a player returns to when a libero leaves.
func (c Court) designatedRole(playerID string) Role {
	return c.Designated[playerID]
}

// Snapshot is a deep copy of the mutable match state taken before a scoring mutation.
type Snapshot struct {
	State MatchState
	Court Court
	// LogMark is the highest PlayID in the rally log when the snapshot was taken.
	// Undo removes every record above it.
	LogMark int64
	// Replaced is the record a correction overwrote or deleted. Undo writes it back.
	Replaced *RallyRecord
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{State: s.State, Court: s.Court.Clone(), LogMark: s.LogMark}
	if s.Replaced != nil {
		rec := *s.Replaced
		out.Replaced = &rec
	}
	return out
}
