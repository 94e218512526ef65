// Package history keeps the undo/redo stacks of the open journey.
// It is an in-memory editing aid and is never persisted.
package history

import "github.com/journeygrid/journeygrid/internal/domain/model/journey"

// DefaultLimit is the number of undo steps kept when no limit is configured
const DefaultLimit = 100

// History holds past and future graph snapshots.
// It is not safe for concurrent use; the editor serializes access.
type History struct {
	past   []journey.Graph
	future []journey.Graph
	limit  int
}

// New creates an empty history keeping at most limit undo steps
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Push records the state before a mutation and invalidates redo
func (h *History) Push(before journey.Graph) {
	h.past = append(h.past, before.Clone())
	if len(h.past) > h.limit {
		h.past = h.past[len(h.past)-h.limit:]
	}
	h.future = nil
}

// Undo returns the previous state, saving current for redo.
// It reports false and changes nothing when there is nothing to undo.
func (h *History) Undo(current journey.Graph) (journey.Graph, bool) {
	if len(h.past) == 0 {
		return journey.Graph{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current.Clone())
	return prev.Clone(), true
}

// Redo returns the next state, saving current for undo
func (h *History) Redo(current journey.Graph) (journey.Graph, bool) {
	if len(h.future) == 0 {
		return journey.Graph{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current.Clone())
	return next.Clone(), true
}

// Mark is a checkpoint of both stacks
type Mark struct {
	past   []journey.Graph
	future []journey.Graph
}

// Mark returns a checkpoint that Restore returns to. Entries are never
// modified in place, so the stacks are copied shallowly.
func (h *History) Mark() Mark {
	return Mark{
		past:   append([]journey.Graph(nil), h.past...),
		future: append([]journey.Graph(nil), h.future...),
	}
}

// Restore returns the stacks to a checkpoint taken by Mark
func (h *History) Restore(m Mark) {
	h.past, h.future = m.past, m.future
}

// Clear drops both stacks
func (h *History) Clear() {
	h.past = nil
	h.future = nil
}

// CanUndo reports whether Undo would change state
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo would change state
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Depth returns the sizes of the undo and redo stacks
func (h *History) Depth() (undo, redo int) {
	return len(h.past), len(h.future)
}
