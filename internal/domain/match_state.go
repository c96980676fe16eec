package domain

// MatchState is the scoreboard of one match.
type MatchState struct {
	MatchID         string `json:"match_id"`
	SetNumber       int    `json:"set_number"`
	RotationSlot    int    `json:"rotation_slot"`
	ActiveSetterID  string `json:"active_setter_id"`
	NextRallyID     int    `json:"next_rally_id"`
	OurScore        int    `json:"our_score"`
	OpponentScore   int    `json:"opponent_score"`
	OurSetsWon      int    `json:"our_sets_won"`
	OpponentSetsWon int    `json:"opponent_sets_won"`
	OurServe        bool   `json:"our_serve"`
	FirstServer     Team   `json:"first_server"`
}

// SetResultCode marks the winner of a finished set from our point of view.
type SetResultCode string

const (
	SetWon  SetResultCode = "W"
	SetLost SetResultCode = "L"
	// SetOpen is stored for a set that has not been finished.
	SetOpen SetResultCode = ""
)

// SetSummary is the persisted final score of one set.
type SetSummary struct {
	MatchID            string        `json:"match_id"`
	SetNumber          int           `json:"set_number"`
	OurFinalScore      int           `json:"our_final_score"`
	OpponentFinalScore int           `json:"opponent_final_score"`
	Result             SetResultCode `json:"result"`
}

// SetResult is returned when a set is finished.
type SetResult struct {
	SetNumber     int
	OurScore      int
	OpponentScore int
	Result        SetResultCode
}

// scorePoint credits a point and reports whether our rotation advanced.
// Only a side-out won by us advances the rotation.
func (m *MatchState) scorePoint(forUs bool) bool {
	rotated := false
	if forUs {
		m.OurScore++
		if !m.OurServe {
			m.RotationSlot = AdvanceRotation(m.RotationSlot)
			rotated = true
		}
	} else {
		m.OpponentScore++
	}
	m.OurServe = forUs
	m.NextRallyID++
	return rotated
}

// removePoint takes a point from team without touching the rotation.
// The serve passes to the other side.
func (m *MatchState) removePoint(team Team) {
	if team == TeamOurs {
		m.OurScore = clampScore(m.OurScore - 1)
		m.OurServe = false
	} else {
		m.OpponentScore = clampScore(m.OpponentScore - 1)
		m.OurServe = true
	}
}

// ApplyCorrection takes back the point old awarded and awards the point updated carries.
// Rotation and serve are never touched and both scores stay non-negative.
func (m *MatchState) ApplyCorrection(old, updated *RallyRecord) {
	m.credit(PointDelta(old), -1)
	m.credit(PointDelta(updated), 1)
}

// credit moves the score of the side a delta belongs to by step.
func (m *MatchState) credit(delta, step int) {
	switch delta {
	case 1:
		m.OurScore = clampScore(m.OurScore + step)
	case -1:
		m.OpponentScore = clampScore(m.OpponentScore + step)
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// CheckSetEndCondition reports whether the current score closes the set.
func (m MatchState) CheckSetEndCondition(rules Rules) bool {
	return rules.SetEnded(m.SetNumber, m.OurScore, m.OpponentScore)
}

// setResult computes the result of the current set from the scores.
func (m MatchState) setResult() SetResult {
	res := SetLost
	if m.OurScore > m.OpponentScore {
		res = SetWon
	}
	return SetResult{
		SetNumber:     m.SetNumber,
		OurScore:      m.OurScore,
		OpponentScore: m.OpponentScore,
		Result:        res,
	}
}

// Summary returns the open summary row for the current set.
func (m MatchState) Summary() SetSummary {
	return SetSummary{
		MatchID:            m.MatchID,
		SetNumber:          m.SetNumber,
		OurFinalScore:      m.OurScore,
		OpponentFinalScore: m.OpponentScore,
		Result:             SetOpen,
	}
}

// decided reports whether either side has won the match.
func (m MatchState) decided(rules Rules) bool {
	return m.OurSetsWon >= rules.SetsToWin || m.OpponentSetsWon >= rules.SetsToWin
}
