package app

import "vmetrics/internal/domain"

// EventKind identifies emitted events for dispatch by an adapter.
type EventKind string

const (
	EventStateChanged  EventKind = "state_changed"
	EventRallyRecorded EventKind = "rally_recorded"
	EventRallyEdited   EventKind = "rally_edited"
	EventRallyDeleted  EventKind = "rally_deleted"
	EventNotice        EventKind = "notice"
	EventSetEnded      EventKind = "set_ended"
	EventMatchEnded    EventKind = "match_ended"
	EventCorrection    EventKind = "correction"
)

// Event is an app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type StateChangedPayload struct {
	View domain.View
}

type RallyRecordedPayload struct {
	Record  domain.RallyRecord
	Delta   int
	Rotated bool
}

type RallyEditedPayload struct {
	Old     domain.RallyRecord
	Updated domain.RallyRecord
}

type RallyDeletedPayload struct {
	Record domain.RallyRecord
}

// NoticePayload is an opaque operator message. Cause is kept for logging only.
type NoticePayload struct {
	Message string
	Cause   error
}

type SetEndedPayload struct {
	Result domain.SetResult
}

type MatchEndedPayload struct {
	OurSetsWon      int
	OpponentSetsWon int
}

// CorrectionPayload carries the record removed by CorrectLastRally so it can be re-entered.
type CorrectionPayload struct {
	Record domain.RallyRecord
}

func stateChanged(session *domain.MatchSession) Event {
	return Event{Kind: EventStateChanged, Payload: StateChangedPayload{View: session.View()}}
}

func notices(messages []string) []Event {
	out := make([]Event, 0, len(messages))
	for _, m := range messages {
		out = append(out, Event{Kind: EventNotice, Payload: NoticePayload{Message: m}})
	}
	return out
}
