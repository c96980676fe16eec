package domain

import (
	"fmt"
	"time"
)

// Team identifies one side of the net.
type Team string

const (
	// TeamOurs is the team being scored.
	TeamOurs Team = "our"
	// TeamOpponent is the other side.
	TeamOpponent Team = "opp"
)

// Valid reports whether t is a known team.
func (t Team) Valid() bool {
	return t == TeamOurs || t == TeamOpponent
}

// Role is a designated court role, or the libero marker when used as an active position.
type Role string

const (
	RoleNone          Role = ""
	RoleSetter        Role = "S"
	RoleOutsideHitter Role = "OH"
	RoleMiddleBlocker Role = "MB"
	RoleOpposite      Role = "OP"
	// RoleLibero is the active position of a libero who is on court.
	RoleLibero Role = "LB"
)

// Valid reports whether r can be designated in a lineup.
func (r Role) Valid() bool {
	switch r {
	case RoleSetter, RoleOutsideHitter, RoleMiddleBlocker, RoleOpposite:
		return true
	}
	return false
}

// AttackType classifies how a rally ended from our point of view.
type AttackType string

const (
	AttackSpike        AttackType = "SPIKE"
	AttackBlock        AttackType = "BLOCK"
	AttackServe        AttackType = "SERVE"
	AttackServeAce     AttackType = "SERVE_ACE"
	AttackServeMiss    AttackType = "SERVE_MISS"
	AttackOpponentMiss AttackType = "OPPONENT_MISS"
	AttackFoul         AttackType = "FOUL"
	AttackDirect       AttackType = "DIRECT"
	AttackTwo          AttackType = "TWO_ATTACK"
	AttackAQuick       AttackType = "A_QUICK"
	AttackBQuick       AttackType = "B_QUICK"
	AttackCQuick       AttackType = "C_QUICK"
	AttackASemi        AttackType = "A_SEMI"
	AttackBSemi        AttackType = "B_SEMI"
	AttackCSemi        AttackType = "C_SEMI"
	AttackBack         AttackType = "BACK_ATTACK"
	AttackLeft         AttackType = "LEFT"
	AttackRight        AttackType = "RIGHT"
	AttackUnknown      AttackType = "UNKNOWN"
)

var attackTypes = map[AttackType]bool{
	AttackSpike: true, AttackBlock: true, AttackServe: true, AttackServeAce: true,
	AttackServeMiss: true, AttackOpponentMiss: true, AttackFoul: true, AttackDirect: true,
	AttackTwo: true, AttackAQuick: true, AttackBQuick: true, AttackCQuick: true,
	AttackASemi: true, AttackBSemi: true, AttackCSemi: true, AttackBack: true,
	AttackLeft: true, AttackRight: true, AttackUnknown: true,
}

// Valid reports whether a is a known attack type.
func (a AttackType) Valid() bool { return attackTypes[a] }

// frontZone reports whether the attack can only be hit legally from the front row.
func (a AttackType) frontZone() bool {
	switch a {
	case AttackAQuick, AttackBQuick, AttackCQuick, AttackASemi, AttackBSemi, AttackCSemi, AttackLeft, AttackRight:
		return true
	}
	return false
}

// isHit reports whether the attack type describes one of our players attacking the ball.
func (a AttackType) isHit() bool {
	switch a {
	case AttackSpike, AttackDirect, AttackTwo, AttackBack:
		return true
	}
	return a.frontZone()
}

// Result is the outcome of the recorded contact.
type Result string

const (
	ResultKill      Result = "KILL"
	ResultFault     Result = "FAULT"
	ResultBlocked   Result = "BLOCKED"
	ResultContinue  Result = "CONTINUE"
	ResultEffective Result = "EFFECTIVE"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	switch r {
	case ResultKill, ResultFault, ResultBlocked, ResultContinue, ResultEffective:
		return true
	}
	return false
}

// Reason records why a point changed hands.
type Reason string

const (
	ReasonNone          Reason = "NONE"
	ReasonAttackKill    Reason = "ATTACK_KILL"
	ReasonServiceAce    Reason = "SERVICE_ACE"
	ReasonOpponentError Reason = "OPPONENT_ERROR"
	ReasonBlockPoint    Reason = "BLOCK_POINT"
	ReasonAttackError   Reason = "ATTACK_ERROR"
	ReasonBlocked       Reason = "BLOCKED"
	ReasonServiceError  Reason = "SERVICE_ERROR"
	ReasonFoul          Reason = "FOUL"
)

// PassPosition grades the first contact by where it let the setter play.
type PassPosition string

const (
	PassA       PassPosition = "A"
	PassB       PassPosition = "B"
	PassS2      PassPosition = "S2"
	PassChance  PassPosition = "CHANCE"
	PassLibero  PassPosition = "L2"
	PassOther   PassPosition = "O"
	PassUnknown PassPosition = "UNKNOWN"
)

// Valid reports whether p is a known pass grade. Empty means not recorded.
func (p PassPosition) Valid() bool {
	switch p {
	case "", PassA, PassB, PassS2, PassChance, PassLibero, PassOther, PassUnknown:
		return true
	}
	return false
}

// TossArea is the zone the set was delivered to.
type TossArea string

const (
	TossAreaA       TossArea = "A"
	TossAreaB       TossArea = "B"
	TossAreaC       TossArea = "C"
	TossAreaLeft    TossArea = "L"
	TossAreaRight   TossArea = "R"
	TossAreaBack    TossArea = "BACK"
	TossAreaUnknown TossArea = "UNKNOWN"
)

// Valid reports whether a is a known toss area. Empty means not recorded.
func (a TossArea) Valid() bool {
	switch a {
	case "", TossAreaA, TossAreaB, TossAreaC, TossAreaLeft, TossAreaRight, TossAreaBack, TossAreaUnknown:
		return true
	}
	return false
}

// TossQuality rates one dimension of a set.
type TossQuality string

const (
	TossGood  TossQuality = "good"
	TossFar   TossQuality = "far"
	TossNear  TossQuality = "near"
	TossLong  TossQuality = "long"
	TossShort TossQuality = "short"
	TossHigh  TossQuality = "high"
	TossLow   TossQuality = "low"
	TossMiss  TossQuality = "miss"
)

// SpikerNone marks a record where nobody got to attack the ball.
const SpikerNone = "NONE"

// RallyRecord is one recorded contact. Several records may share a RallyID
// when the rally continued; PlayID is unique and assigned by the store.
type RallyRecord struct {
	PlayID       int64        `json:"play_id"`
	MatchID      string       `json:"match_id"`
	SetNumber    int          `json:"set_number"`
	RallyID      int          `json:"rally_id"`
	RotationSlot int          `json:"rotation_slot"`
	AttackType   AttackType   `json:"attack_type"`
	Result       Result       `json:"result"`
	SpikerID     string       `json:"spiker_id"`
	SetterID     string       `json:"setter_id"`
	Reason       Reason       `json:"reason"`
	PassPosition PassPosition `json:"pass_position,omitempty"`
	TossArea     TossArea     `json:"toss_area,omitempty"`
	TossDistance TossQuality  `json:"toss_distance,omitempty"`
	TossLength   TossQuality  `json:"toss_length,omitempty"`
	TossHeight   TossQuality  `json:"toss_height,omitempty"`
	RecordedAt   time.Time    `json:"recorded_at"`
}

// Validate checks the closed enums and required fields of a record.
func (r RallyRecord) Validate() error {
	if !r.AttackType.Valid() {
		return fmt.Errorf("%w: attack type %q", ErrInvalidRecord, r.AttackType)
	}
	if !r.Result.Valid() {
		return fmt.Errorf("%w: result %q", ErrInvalidRecord, r.Result)
	}
	if r.SpikerID == "" {
		return fmt.Errorf("%w: spiker is required", ErrInvalidRecord)
	}
	if !r.PassPosition.Valid() {
		return fmt.Errorf("%w: pass position %q", ErrInvalidRecord, r.PassPosition)
	}
	if !r.TossArea.Valid() {
		return fmt.Errorf("%w: toss area %q", ErrInvalidRecord, r.TossArea)
	}
	return nil
}

// InferResult returns the result implied by attack types that only have one outcome.
func InferResult(attack AttackType) (Result, bool) {
	switch attack {
	case AttackFoul, AttackServeMiss:
		return ResultFault, true
	case AttackServeAce, AttackOpponentMiss:
		return ResultKill, true
	}
	return "", false
}

// MarkTossMiss turns rec into the record for a set nobody could attack.
func MarkTossMiss(rec RallyRecord) RallyRecord {
	rec.SpikerID = SpikerNone
	rec.AttackType = AttackFoul
	rec.Result = ResultFault
	rec.TossDistance = TossMiss
	rec.TossLength = TossMiss
	rec.TossHeight = TossMiss
	return rec
}
