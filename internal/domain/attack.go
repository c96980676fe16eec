package domain

import "fmt"

// DetermineAttackType derives the attack type from the spiker's role and the toss zone.
func (s *MatchSession) DetermineAttackType(spikerID string, area TossArea) AttackType {
	role, known := s.court.Statuses[spikerID]
	if !known {
		return AttackUnknown
	}
	if r := s.court.Designated[spikerID]; r != RoleNone {
		role = r
	}

	switch area {
	case TossAreaA, TossAreaB, TossAreaC:
		switch role {
		case RoleMiddleBlocker:
			return quickFor(area)
		case RoleOutsideHitter, RoleOpposite:
			return semiFor(area)
		}
	case TossAreaBack:
		if slot, ok := s.court.courtSlotOf(spikerID); ok && IsBackRow(s.visualOf(slot)) {
			return AttackBack
		}
	case TossAreaLeft:
		return AttackLeft
	case TossAreaRight:
		return AttackRight
	}
	return AttackSpike
}

func quickFor(area TossArea) AttackType {
	switch area {
	case TossAreaA:
		return AttackAQuick
	case TossAreaB:
		return AttackBQuick
	}
	return AttackCQuick
}

func semiFor(area TossArea) AttackType {
	switch area {
	case TossAreaA:
		return AttackASemi
	case TossAreaB:
		return AttackBSemi
	}
	return AttackCSemi
}

// CheckAttackLegality flags attacks the rules would not allow. It never blocks recording.
func (s *MatchSession) CheckAttackLegality(rec RallyRecord) []string {
	if !rec.AttackType.isHit() || rec.SpikerID == "" || rec.SpikerID == SpikerNone {
		return nil
	}
	var notices []string
	if s.court.Statuses[rec.SpikerID] == RoleLibero {
		notices = append(notices, fmt.Sprintf("libero %s recorded as attacking (%s)", rec.SpikerID, rec.AttackType))
	}
	if slot, ok := s.court.courtSlotOf(rec.SpikerID); ok && rec.AttackType.frontZone() {
		if v := s.visualOf(slot); IsBackRow(v) {
			notices = append(notices, fmt.Sprintf("%s attacked %s from back-row position %d", rec.SpikerID, rec.AttackType, v))
		}
	}
	return notices
}

// GradePass adjusts a pass grade for who actually delivered the set.
// A set by the libero grades L2 and a set by anyone but the setter grades O.
func (s *MatchSession) GradePass(zone PassPosition, tosserID string) PassPosition {
	if zone == PassChance || tosserID == "" {
		return zone
	}
	switch s.court.Statuses[tosserID] {
	case RoleLibero:
		return PassLibero
	case RoleSetter:
		return zone
	}
	if tosserID == s.state.ActiveSetterID {
		return zone
	}
	return PassOther
}
