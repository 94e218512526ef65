package editor

import (
	"context"
	"fmt"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// NodeUpdate is a partial update of one node's fields.
// Label and Description are typed continuously and save debounced;
// any other field saves immediately.
type NodeUpdate struct {
	Label       *string
	Description *string
	Icon        *string
	Status      *journey.NodeStatus
	JournalID   *string
}

func (u NodeUpdate) continuous() bool {
	return u.Icon == nil && u.Status == nil && u.JournalID == nil
}

func (u NodeUpdate) applyTo(n *journey.Node) {
	if u.Label != nil {
		n.Label = *u.Label
	}
	if u.Description != nil {
		n.Description = *u.Description
	}
	if u.Icon != nil {
		n.Icon = *u.Icon
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	if u.JournalID != nil {
		n.JournalID = *u.JournalID
	}
}

// MetadataUpdate is a partial update of the open journey's own fields
type MetadataUpdate struct {
	Name        *string
	Description *string
	JournalID   *string
	Visibility  *journey.Visibility
}

// NodeChange is one change requested by the renderer during reconciliation
type NodeChange struct {
	ID       string
	Remove   bool
	Position *journey.Position
	// Dragging marks a position change that is part of a gesture in progress
	Dragging bool
}

type saveMode int

const (
	saveNone saveMode = iota
	saveDebounced
	saveImmediate
)

// AddNode appends a node. The first node of a journey always becomes the
// milestone; adding another milestone fails with ErrDuplicateRoot. With no
// journey open a new one is created first.
func (e *Editor) AddNode(ctx context.Context, n journey.Node) (journey.Node, error) {
	if e.JourneyID() == "" {
		if _, err := e.NewJourney(ctx, ""); err != nil {
			return journey.Node{}, err
		}
	}

	var added journey.Node
	err := e.mutate(ctx, true, func() (saveMode, error) {
		if n.ID == "" {
			n.ID = model.NewID()
		}
		if e.graph.NodeIndex(n.ID) >= 0 {
			return saveNone, fmt.Errorf("node %s already exists", n.ID)
		}
		if !e.graph.HasRoot() {
			n.Type = journey.NodeTypeMilestone
		} else if n.Type == journey.NodeTypeMilestone {
			return saveNone, ErrDuplicateRoot
		}
		if n.Type == "" {
			n.Type = journey.NodeTypeGoal
		}
		if n.Status == "" {
			n.Status = journey.StatusNotStarted
		}
		e.graph.Nodes = append(e.graph.Nodes, n.Clone())
		added = n
		return saveImmediate, nil
	})
	return added, err
}

// AddEdge connects two nodes of the open journey
func (e *Editor) AddEdge(ctx context.Context, source, target, edgeType string) (journey.Edge, error) {
	var added journey.Edge
	err := e.mutate(ctx, true, func() (saveMode, error) {
		if e.graph.NodeIndex(source) < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
		}
		if e.graph.NodeIndex(target) < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
		}
		if source == target {
			return saveNone, ErrInvalidEdge
		}
		if edgeType == "" {
			edgeType = journey.DefaultEdgeType
		}
		added = journey.Edge{ID: model.NewID(), Source: source, Target: target, Type: edgeType}
		e.graph.Edges = append(e.graph.Edges, added)
		return saveImmediate, nil
	})
	return added, err
}

// DeleteNode removes a node and its edges. Deleting the milestone is a no-op.
func (e *Editor) DeleteNode(ctx context.Context, id string) error {
	return e.mutate(ctx, true, func() (saveMode, error) {
		i := e.graph.NodeIndex(id)
		if i < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if e.graph.Nodes[i].IsRoot() {
			return saveNone, nil
		}
		e.graph = e.graph.WithoutNodes(id)
		e.dropStaleSelectionLocked()
		return saveImmediate, nil
	})
}

// DeleteEdge removes one edge
func (e *Editor) DeleteEdge(ctx context.Context, id string) error {
	return e.mutate(ctx, true, func() (saveMode, error) {
		i := e.graph.EdgeIndex(id)
		if i < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
		}
		e.graph.Edges = append(e.graph.Edges[:i:i], e.graph.Edges[i+1:]...)
		e.dropStaleSelectionLocked()
		return saveImmediate, nil
	})
}

// DeleteItems removes several nodes and edges at once, as a multi-select
// delete does. The milestone and unknown IDs are skipped.
func (e *Editor) DeleteItems(ctx context.Context, nodeIDs, edgeIDs []string) error {
	return e.mutate(ctx, true, func() (saveMode, error) {
		before := len(e.graph.Nodes) + len(e.graph.Edges)
		g := e.graph.WithoutNodes(nodeIDs...)
		drop := make(map[string]struct{}, len(edgeIDs))
		for _, id := range edgeIDs {
			drop[id] = struct{}{}
		}
		edges := g.Edges[:0]
		for _, edge := range g.Edges {
			if _, ok := drop[edge.ID]; !ok {
				edges = append(edges, edge)
			}
		}
		g.Edges = edges
		if len(g.Nodes)+len(g.Edges) == before {
			return saveNone, nil
		}
		e.graph = g
		e.dropStaleSelectionLocked()
		return saveImmediate, nil
	})
}

// DeleteSelectedItems removes whatever is selected
func (e *Editor) DeleteSelectedItems(ctx context.Context) error {
	e.mu.Lock()
	var nodes, edges []string
	if e.selNode != "" {
		nodes = append(nodes, e.selNode)
	}
	if e.selEdge != "" {
		edges = append(edges, e.selEdge)
	}
	e.mu.Unlock()

	if len(nodes) == 0 && len(edges) == 0 {
		return nil
	}
	return e.DeleteItems(ctx, nodes, edges)
}

// ClearAll removes everything but the milestone
func (e *Editor) ClearAll(ctx context.Context) error {
	return e.mutate(ctx, true, func() (saveMode, error) {
		var keep []journey.Node
		for _, n := range e.graph.Nodes {
			if n.IsRoot() {
				keep = append(keep, n)
			}
		}
		if len(keep) == len(e.graph.Nodes) && len(e.graph.Edges) == 0 {
			return saveNone, nil
		}
		e.graph = journey.Graph{Nodes: append([]journey.Node{}, keep...), Edges: []journey.Edge{}}
		e.dropStaleSelectionLocked()
		return saveImmediate, nil
	})
}

// UpdateNodeField changes node fields
func (e *Editor) UpdateNodeField(ctx context.Context, id string, u NodeUpdate) error {
	return e.mutate(ctx, true, func() (saveMode, error) {
		i := e.graph.NodeIndex(id)
		if i < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		u.applyTo(&e.graph.Nodes[i])
		if u.continuous() {
			return saveDebounced, nil
		}
		return saveImmediate, nil
	})
}

// MoveNode sets a node's position. Frames of a drag in progress save
// debounced and record no history; the final frame records the state from
// before the drag and saves immediately.
func (e *Editor) MoveNode(ctx context.Context, id string, pos journey.Position, final bool) error {
	return e.gestureStep(ctx, id, final, func(n *journey.Node) { n.Position = pos })
}

// ResizeNode sets a node's size with the same gesture rules as MoveNode
func (e *Editor) ResizeNode(ctx context.Context, id string, size journey.Size, final bool) error {
	return e.gestureStep(ctx, id, final, func(n *journey.Node) {
		s := size
		n.Size = &s
	})
}

func (e *Editor) gestureStep(ctx context.Context, id string, final bool, apply func(n *journey.Node)) error {
	return e.mutate(ctx, false, func() (saveMode, error) {
		i := e.graph.NodeIndex(id)
		if i < 0 {
			return saveNone, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if e.gesture == nil {
			before := e.graph.Clone()
			e.gesture = &before
		}
		apply(&e.graph.Nodes[i])
		if !final {
			return saveDebounced, nil
		}
		e.history.Push(*e.gesture)
		e.gesture = nil
		return saveImmediate, nil
	})
}

// ApplyNodeChanges reconciles changes requested by the renderer.
// Removal of the milestone is filtered out.
func (e *Editor) ApplyNodeChanges(ctx context.Context, changes []NodeChange) error {
	var removals []string
	for _, c := range changes {
		if c.Remove {
			removals = append(removals, c.ID)
		}
	}
	if len(removals) > 0 {
		if err := e.DeleteItems(ctx, removals, nil); err != nil {
			return err
		}
	}
	for _, c := range changes {
		if c.Remove || c.Position == nil {
			continue
		}
		if err := e.MoveNode(ctx, c.ID, *c.Position, !c.Dragging); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMetadata changes the journey's own fields with a debounced save
func (e *Editor) UpdateMetadata(ctx context.Context, u MetadataUpdate) error {
	return e.mutate(ctx, false, func() (saveMode, error) {
		if u.Name != nil {
			e.meta.Name = *u.Name
		}
		if u.Description != nil {
			e.meta.Description = *u.Description
		}
		if u.JournalID != nil {
			e.meta.JournalID = *u.JournalID
		}
		if u.Visibility != nil {
			e.meta.Visibility = *u.Visibility
		}
		return saveDebounced, nil
	})
}

// SelectNode selects a node and clears any edge selection
func (e *Editor) SelectNode(id string) error {
	return e.selectItem(func() error {
		if e.graph.NodeIndex(id) < 0 {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		e.selNode, e.selEdge = id, ""
		return nil
	})
}

// SelectEdge selects an edge and clears any node selection
func (e *Editor) SelectEdge(id string) error {
	return e.selectItem(func() error {
		if e.graph.EdgeIndex(id) < 0 {
			return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
		}
		e.selNode, e.selEdge = "", id
		return nil
	})
}

// ClearSelection deselects everything
func (e *Editor) ClearSelection() {
	_ = e.selectItem(func() error {
		e.selNode, e.selEdge = "", ""
		return nil
	})
}

func (e *Editor) selectItem(fn func() error) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrNoJourney
	}
	if err := fn(); err != nil {
		e.mu.Unlock()
		return err
	}
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
	return nil
}

// Undo restores the state before the last recorded mutation and saves it.
// It reports false when there was nothing to undo.
func (e *Editor) Undo(ctx context.Context) (bool, error) {
	return e.travel(ctx, e.history.Undo)
}

// Redo re-applies the last undone mutation and saves it
func (e *Editor) Redo(ctx context.Context) (bool, error) {
	return e.travel(ctx, e.history.Redo)
}

func (e *Editor) travel(ctx context.Context, step func(journey.Graph) (journey.Graph, bool)) (bool, error) {
	moved := false
	err := e.mutate(ctx, false, func() (saveMode, error) {
		g, ok := step(e.graph)
		if !ok {
			return saveNone, nil
		}
		e.graph = g
		e.gesture = nil
		e.dropStaleSelectionLocked()
		moved = true
		return saveImmediate, nil
	})
	return moved, err
}

// mutate runs fn against the locked state. With record set, the state before
// fn is pushed onto the undo stack when fn changes anything. A result the
// mutation API would reject is rolled back and its *model.ValidationErrors
// returned, so memory never holds what cannot be saved.
func (e *Editor) mutate(ctx context.Context, record bool, fn func() (saveMode, error)) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return ErrNoJourney
	}
	before := e.graph.Clone()
	beforeMeta := e.meta
	beforeGesture := e.gesture
	selNode, selEdge := e.selNode, e.selEdge
	mark := e.history.Mark()

	mode, err := fn()
	if err != nil || mode == saveNone {
		e.mu.Unlock()
		return err
	}
	if err := e.checkLocked(ctx, beforeMeta, before); err != nil {
		e.graph, e.meta, e.gesture = before, beforeMeta, beforeGesture
		e.selNode, e.selEdge = selNode, selEdge
		e.history.Restore(mark)
		e.mu.Unlock()
		return err
	}
	if record {
		e.history.Push(before)
		e.gesture = nil
	}
	e.unsaved = true
	e.lastEdit = model.Timestamp(e.clock())
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)

	if mode == saveDebounced {
		e.saver.Debounced(e.persist)
		return nil
	}
	return e.saver.Immediate(ctx, e.persist)
}

// checkLocked validates the open journey as it would be stored. Journal
// references are looked up only when one was added.
func (e *Editor) checkLocked(ctx context.Context, prevMeta journey.Journey, prev journey.Graph) error {
	j := stored(e.journeyLocked())
	if err := journey.Validate(j); err != nil {
		return err
	}

	old := prevMeta
	old.Nodes, old.Edges = prev.Nodes, prev.Edges
	known := make(map[string]struct{})
	for _, id := range old.JournalRefs() {
		known[id] = struct{}{}
	}
	for _, id := range j.JournalRefs() {
		if _, ok := known[id]; !ok {
			return e.store.CheckJournalRefs(ctx, j)
		}
	}
	return nil
}
