package domain

// CourtSlots is the number of serving-order slots a team fields.
const CourtSlots = 6

// AdvanceRotation returns the serving-order slot that follows slot.
func AdvanceRotation(slot int) int {
	return slot%CourtSlots + 1
}

// VisualPosition maps a starting slot to its position relative to the net
// for the given rotation slot. The result is always in 1..6.
func VisualPosition(startingSlot, rotationSlot int) int {
	pos := (startingSlot - rotationSlot + 1) % CourtSlots
	if pos <= 0 {
		pos += CourtSlots
	}
	return pos
}

// IsFrontRow reports whether a visual position is at the net (2, 3, 4).
func IsFrontRow(visual int) bool {
	return visual >= 2 && visual <= 4
}

// IsBackRow reports whether a visual position is in the back court (1, 5, 6).
func IsBackRow(visual int) bool {
	return visual == 1 || visual == 5 || visual == 6
}

// ValidSlot reports whether slot is a legal serving-order slot.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= CourtSlots
}

// backRowOrder lists the back-row visual positions in the order operators read them.
var backRowOrder = [...]int{1, 6, 5}
