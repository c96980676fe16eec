package domain

// History is a bounded stack of snapshots. Pushing past the depth drops the oldest entry.
type History struct {
	depth   int
	entries []Snapshot
}

// NewHistory creates a history that keeps at most depth snapshots.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultRules().HistoryDepth
	}
	return &History{depth: depth, entries: make([]Snapshot, 0, depth)}
}

// Push stores a copy of s.
func (h *History) Push(s Snapshot) {
	if len(h.entries) == h.depth {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, s.Clone())
}

// Peek returns the most recent snapshot without removing it.
func (h *History) Peek() (Snapshot, bool) {
	if len(h.entries) == 0 {
		return Snapshot{}, false
	}
	return h.entries[len(h.entries)-1].Clone(), true
}

// Pop removes and returns the most recent snapshot.
func (h *History) Pop() (Snapshot, bool) {
	s, ok := h.Peek()
	if ok {
		h.entries = h.entries[:len(h.entries)-1]
	}
	return s, ok
}

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.entries) }

// Clear drops every snapshot.
func (h *History) Clear() { h.entries = h.entries[:0] }
