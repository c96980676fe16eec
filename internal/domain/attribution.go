package domain

// Outcome is the scoring effect of a single rally record.
// Delta is +1 for our point, -1 for the opponent's point and 0 when play continued.
type Outcome struct {
	Delta  int
	Reason Reason
}

// Attribute classifies an attack type and result into a point for one side.
// Result KILL is checked first, then the attack types that always score,
// then the losing results.
func Attribute(attack AttackType, result Result) Outcome {
	if result == ResultKill {
		switch attack {
		case AttackServeAce:
			return Outcome{Delta: 1, Reason: ReasonServiceAce}
		case AttackOpponentMiss:
			return Outcome{Delta: 1, Reason: ReasonOpponentError}
		case AttackBlock:
			return Outcome{Delta: 1, Reason: ReasonBlockPoint}
		default:
			return Outcome{Delta: 1, Reason: ReasonAttackKill}
		}
	}

	switch attack {
	case AttackServeAce:
		return Outcome{Delta: 1, Reason: ReasonServiceAce}
	case AttackOpponentMiss:
		return Outcome{Delta: 1, Reason: ReasonOpponentError}
	}

	switch result {
	case ResultFault:
		switch attack {
		case AttackServeMiss:
			return Outcome{Delta: -1, Reason: ReasonServiceError}
		case AttackFoul:
			return Outcome{Delta: -1, Reason: ReasonFoul}
		default:
			return Outcome{Delta: -1, Reason: ReasonAttackError}
		}
	case ResultBlocked:
		return Outcome{Delta: -1, Reason: ReasonBlocked}
	}

	if attack == AttackServeMiss {
		return Outcome{Delta: -1, Reason: ReasonServiceError}
	}
	return Outcome{Delta: 0, Reason: ReasonNone}
}

// PointDelta returns the score delta a record carries. A nil record carries none.
func PointDelta(rec *RallyRecord) int {
	if rec == nil {
		return 0
	}
	return Attribute(rec.AttackType, rec.Result).Delta
}
