package nakama

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"vmetrics/internal/app"
	"vmetrics/internal/domain"
)

var validate = validator.New()

var errInvalidPayload = errors.New("invalid payload")

// decode unmarshals a client payload into v and validates its tags.
// An empty payload decodes as an empty object.
func decode(data []byte, v any) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}
	return nil
}

type startSetRequest struct {
	Lineup      domain.Lineup `json:"lineup"`
	FirstServer domain.Team   `json:"first_server" validate:"oneof=our opp"`
}

type rallyRequest struct {
	AttackType   domain.AttackType   `json:"attack_type"`
	Result       domain.Result       `json:"result"`
	SpikerID     string              `json:"spiker_id" validate:"required_without=TossMiss"`
	SetterID     string              `json:"setter_id"`
	TosserID     string              `json:"tosser_id"`
	PassZone     domain.PassPosition `json:"pass_zone"`
	TossArea     domain.TossArea     `json:"toss_area"`
	TossDistance domain.TossQuality  `json:"toss_distance"`
	TossLength   domain.TossQuality  `json:"toss_length"`
	TossHeight   domain.TossQuality  `json:"toss_height"`
	TossMiss     bool                `json:"toss_miss"`
}

func (r rallyRequest) input() app.RallyInput {
	return app.RallyInput{
		AttackType:   r.AttackType,
		Result:       r.Result,
		SpikerID:     r.SpikerID,
		SetterID:     r.SetterID,
		TosserID:     r.TosserID,
		PassZone:     r.PassZone,
		TossArea:     r.TossArea,
		TossDistance: r.TossDistance,
		TossLength:   r.TossLength,
		TossHeight:   r.TossHeight,
		TossMiss:     r.TossMiss,
	}
}

type editRallyRequest struct {
	PlayID int64        `json:"play_id" validate:"gt=0"`
	Rally  rallyRequest `json:"rally"`
}

type deleteRallyRequest struct {
	PlayID int64 `json:"play_id" validate:"gt=0"`
}

type liberoRequest struct {
	OriginalID string `json:"original_id" validate:"required"`
	LiberoID   string `json:"libero_id" validate:"required"`
}

type liberoOutRequest struct {
	OriginalID string `json:"original_id" validate:"required"`
}

type substituteRequest struct {
	OutID string `json:"out_id" validate:"required"`
	InID  string `json:"in_id" validate:"required,nefield=OutID"`
}

type designateSetterRequest struct {
	PlayerID string `json:"player_id" validate:"required"`
}

type adjustScoreRequest struct {
	Team domain.Team `json:"team" validate:"oneof=our opp"`
	Step int         `json:"step" validate:"oneof=-1 1"`
}

// Server -> client payloads.

type errorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type noticeMessage struct {
	Message string `json:"message"`
}

type rallyRecordedMessage struct {
	Record  domain.RallyRecord `json:"record"`
	Delta   int                `json:"delta"`
	Rotated bool               `json:"rotated"`
}

// rallyChangedMessage reports an edit, or a deletion when Updated is nil.
type rallyChangedMessage struct {
	Old     domain.RallyRecord  `json:"old"`
	Updated *domain.RallyRecord `json:"updated,omitempty"`
}

type setEndedMessage struct {
	SetNumber     int                  `json:"set_number"`
	OurScore      int                  `json:"our_score"`
	OpponentScore int                  `json:"opponent_score"`
	Result        domain.SetResultCode `json:"result"`
}

type matchEndedMessage struct {
	OurSetsWon      int `json:"our_sets_won"`
	OpponentSetsWon int `json:"opponent_sets_won"`
}

type correctionMessage struct {
	Record domain.RallyRecord `json:"record"`
}

// encodeEvent maps an app event to its op code and wire payload.
func encodeEvent(ev app.Event) (int64, any, bool) {
	switch p := ev.Payload.(type) {
	case app.StateChangedPayload:
		return OpStateSnapshot, p.View, true
	case app.RallyRecordedPayload:
		return OpRallyRecorded, rallyRecordedMessage{Record: p.Record, Delta: p.Delta, Rotated: p.Rotated}, true
	case app.RallyEditedPayload:
		updated := p.Updated
		return OpRallyChanged, rallyChangedMessage{Old: p.Old, Updated: &updated}, true
	case app.RallyDeletedPayload:
		return OpRallyChanged, rallyChangedMessage{Old: p.Record}, true
	case app.NoticePayload:
		return OpNotice, noticeMessage{Message: p.Message}, true
	case app.SetEndedPayload:
		return OpSetEnded, setEndedMessage{
			SetNumber:     p.Result.SetNumber,
			OurScore:      p.Result.OurScore,
			OpponentScore: p.Result.OpponentScore,
			Result:        p.Result.Result,
		}, true
	case app.MatchEndedPayload:
		return OpMatchEnded, matchEndedMessage{OurSetsWon: p.OurSetsWon, OpponentSetsWon: p.OpponentSetsWon}, true
	case app.CorrectionPayload:
		return OpCorrection, correctionMessage{Record: p.Record}, true
	}
	return 0, nil, false
}
