package domain

import "errors"

// Recoverable operator errors. State is left unchanged when one is returned.
var (
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrLiberoAlreadyBound = errors.New("libero is already replacing another player")
	ErrAlreadyReplaced    = errors.New("player is already replaced by a libero")
	ErrNotLibero          = errors.New("player is not a registered libero")
	ErrNoBinding          = errors.New("player is not replaced by a libero")
	ErrFrontRow           = errors.New("libero cannot replace a front-row player")
	ErrNotOnCourt         = errors.New("player is not on court")
	ErrLiberoSubstitution = errors.New("liberos enter and leave through the libero controls")
	ErrAlreadyOnCourt     = errors.New("player is already on court")
	ErrSetterMissing      = errors.New("a new setter must be designated")
	ErrNoSetterPending    = errors.New("no setter hand-off is pending")
	ErrSetNotOver         = errors.New("set end condition not reached")
	ErrSetNotInPlay       = errors.New("set is not in play")
	ErrSetNotClosed       = errors.New("set is not closed")
	ErrMatchEnded         = errors.New("match has ended")
	ErrInvalidLineup      = errors.New("invalid lineup")
	ErrInvalidRecord      = errors.New("invalid rally record")
	ErrInvalidAdjustment  = errors.New("invalid score adjustment")
	ErrMissingMatchID     = errors.New("match id is required")
)

// ErrInvalidRules reports a scoring rule set that cannot govern a match.
var ErrInvalidRules = errors.New("invalid scoring rules")

// ErrInvalidRotation reports a rotation slot outside 1..6. It indicates a bug, not bad input.
var ErrInvalidRotation = errors.New("rotation slot out of range")
