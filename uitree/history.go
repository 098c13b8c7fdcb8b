package uitree

// History is a linear undo/redo stack of tree snapshots. Entries are copied
// on the way in and on the way out, so no caller can alter a stored
// snapshot. The zero value is empty and ready to use.
type History struct {
	entries []*Node
	cursor  int
}

// Reset replaces the whole history with a single entry.
func (h *History) Reset(initial *Node) {
	h.entries = []*Node{initial.Clone()}
	h.cursor = 0
}

// Push drops every entry after the cursor, appends s and moves the cursor
// onto it. On an empty history Push behaves like Reset.
func (h *History) Push(s *Node) {
	if len(h.entries) == 0 {
		h.Reset(s)
		return
	}
	h.entries = append(h.entries[:h.cursor+1:h.cursor+1], s.Clone())
	h.cursor = len(h.entries) - 1
}

// Undo steps back one entry and reports whether the cursor moved.
func (h *History) Undo() bool {
	if h.cursor <= 0 {
		return false
	}
	h.cursor--
	return true
}

// Redo steps forward one entry and reports whether the cursor moved.
func (h *History) Redo() bool {
	if h.cursor >= len(h.entries)-1 {
		return false
	}
	h.cursor++
	return true
}

// Current returns a copy of the entry under the cursor, or nil before the
// first Reset.
func (h *History) Current() *Node {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[h.cursor].Clone()
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries)-1 }
func (h *History) Len() int      { return len(h.entries) }
func (h *History) Cursor() int   { return h.cursor }
