package app

// Operator-facing messages emitted as notices.
const (
	NoticeResumedAsNew = "no saved data for this match; starting a new match at set 1"
	NoticeUndone       = "last rally undone"
	NoticeSetDiscarded = "current set discarded"
	// NoticeSetterNeeded is sent when the setter leaves the court.
	NoticeSetterNeeded = "the setter left the court; choose a new setter before the next rally"
)
