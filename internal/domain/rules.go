package domain

import "fmt"

// Rules holds the scoring constants for a match.
type Rules struct {
	// PointsPerSet is the point target of a regular set.
	PointsPerSet int
	// DecidingSetPoints is the point target of the deciding set.
	DecidingSetPoints int
	// DecidingSet is the set number played to DecidingSetPoints.
	DecidingSet int
	// WinMargin is the lead required to close a set.
	WinMargin int
	// SetsToWin is the number of sets that decides the match.
	SetsToWin int
	// HistoryDepth bounds the undo stack.
	HistoryDepth int
}

// DefaultRules returns indoor best-of-five rules.
func DefaultRules() Rules {
	return Rules{
		PointsPerSet:      25,
		DecidingSetPoints: 15,
		DecidingSet:       5,
		WinMargin:         2,
		SetsToWin:         3,
		HistoryDepth:      10,
	}
}

// Validate reports rules that cannot produce a finished set.
func (r Rules) Validate() error {
	if r.PointsPerSet <= 0 || r.DecidingSetPoints <= 0 {
		return fmt.Errorf("%w: point targets must be positive", ErrInvalidRules)
	}
	if r.DecidingSet <= 0 || r.SetsToWin <= 0 {
		return fmt.Errorf("%w: set counts must be positive", ErrInvalidRules)
	}
	if r.WinMargin <= 0 {
		return fmt.Errorf("%w: win margin must be positive", ErrInvalidRules)
	}
	if r.HistoryDepth <= 0 {
		return fmt.Errorf("%w: history depth must be positive", ErrInvalidRules)
	}
	return nil
}

// PointLimit returns the point target for the given set number.
func (r Rules) PointLimit(setNumber int) int {
	if setNumber == r.DecidingSet {
		return r.DecidingSetPoints
	}
	return r.PointsPerSet
}

// SetEnded reports whether the score closes the set under r.
func (r Rules) SetEnded(setNumber, our, opponent int) bool {
	high, diff := our, our-opponent
	if opponent > high {
		high = opponent
	}
	if diff < 0 {
		diff = -diff
	}
	return high >= r.PointLimit(setNumber) && diff >= r.WinMargin
}
