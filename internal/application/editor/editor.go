// Package editor holds the open journey in memory as the canonical editing
// surface. Mutations update the in-memory graph, record undo history and hand
// the save to the autosave policy; renderers observe State through Subscribe.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/autosave"
	"github.com/journeygrid/journeygrid/internal/application/history"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

var (
	// ErrNoJourney is returned by operations that need an open journey
	ErrNoJourney = errors.New("no journey is open")

	// ErrDuplicateRoot is returned when adding a second milestone
	ErrDuplicateRoot = errors.New("journey already has a milestone")

	// ErrNodeNotFound is returned when a node ID is not in the open journey
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an edge ID is not in the open journey
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvalidEdge is returned for an edge from a node to itself
	ErrInvalidEdge = errors.New("edge must connect two distinct nodes")
)

// JourneyStore is the slice of the mutation API the editor writes through
type JourneyStore interface {
	Get(ctx context.Context, id string) (*journey.Record, error)
	Create(ctx context.Context, j journey.Journey) (*journey.Record, error)
	Update(ctx context.Context, id string, patch journey.Patch) (*journey.Record, error)
	ApplyRemote(ctx context.Context, remote journey.Journey) error
	CheckJournalRefs(ctx context.Context, j journey.Journey) error
}

// RemoteReader fetches a journey that is absent locally
type RemoteReader interface {
	GetByID(ctx context.Context, id string) (journey.Journey, error)
}

// Saver is the autosave policy as seen by the editor
type Saver interface {
	Immediate(ctx context.Context, persist autosave.PersistFunc) error
	Debounced(persist autosave.PersistFunc)
	Flush(ctx context.Context) error
}

// State is an immutable view of the editor
type State struct {
	Open           bool
	JourneyID      string
	Name           string
	Description    string
	JournalID      string
	Visibility     journey.Visibility
	Nodes          []journey.Node
	Edges          []journey.Edge
	SelectedNodeID string
	SelectedEdgeID string
	Unsaved        bool
	CanUndo        bool
	CanRedo        bool
}

// Graph returns the state's nodes and edges
func (s State) Graph() journey.Graph {
	return journey.Graph{Nodes: s.Nodes, Edges: s.Edges}
}

// Option configures an Editor
type Option func(*Editor)

// WithRemote enables the remote fallback of Load
func WithRemote(r RemoteReader) Option {
	return func(e *Editor) { e.remote = r }
}

// WithOwner sets the identity new journeys are tagged with
func WithOwner(fn func() string) Option {
	return func(e *Editor) { e.owner = fn }
}

// WithHistoryLimit bounds the undo stack
func WithHistoryLimit(n int) Option {
	return func(e *Editor) { e.history = history.New(n) }
}

// WithClock sets the time source for edit stamps
func WithClock(fn func() time.Time) Option {
	return func(e *Editor) { e.clock = fn }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Editor is the reactive state layer for one open journey
type Editor struct {
	store   JourneyStore
	saver   Saver
	remote  RemoteReader
	owner   func() string
	clock   func() time.Time
	logger  *zap.Logger
	history *history.History

	mu       sync.Mutex
	open     bool
	meta     journey.Journey // metadata of the open journey; Nodes and Edges unused
	graph    journey.Graph
	base     time.Time // updatedAt of the stored record the state derives from
	lastEdit time.Time
	unsaved  bool
	selNode  string
	selEdge  string
	gesture  *journey.Graph // state before the drag or resize in progress

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates an editor with no journey open
func New(store JourneyStore, saver Saver, opts ...Option) *Editor {
	e := &Editor{
		store:   store,
		saver:   saver,
		owner:   func() string { return "" },
		clock:   time.Now,
		logger:  zap.NewNop(),
		history: history.New(history.DefaultLimit),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription. fn runs on the goroutine that changed
// the state, possibly inside a save, and must not mutate the editor.
func (e *Editor) Subscribe(fn func(State)) func() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// State returns a snapshot of the editor
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// JourneyID returns the open journey's ID, or "" when none is open
func (e *Editor) JourneyID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ""
	}
	return e.meta.ID
}

// Load opens a journey, replacing the in-memory state wholesale.
// A pending save of the previous journey is flushed first. A journey absent
// locally is fetched from the remote and stored as synced. History is cleared.
func (e *Editor) Load(ctx context.Context, id string) error {
	if err := e.saver.Flush(ctx); err != nil {
		return fmt.Errorf("save before load failed: %w", err)
	}

	rec, err := e.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) && e.remote != nil {
		rec, err = e.fetchRemote(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("load journey %s failed: %w", id, err)
	}

	e.mu.Lock()
	e.openLocked(rec)
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
	return nil
}

func (e *Editor) fetchRemote(ctx context.Context, id string) (*journey.Record, error) {
	remote, err := e.remote.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.store.ApplyRemote(ctx, remote); err != nil {
		return nil, err
	}
	e.logger.Info("journey fetched from remote", zap.String("id", id))
	return e.store.Get(ctx, id)
}

// NewJourney creates an empty journey and opens it
func (e *Editor) NewJourney(ctx context.Context, name string) (State, error) {
	if err := e.saver.Flush(ctx); err != nil {
		return State{}, fmt.Errorf("save before new journey failed: %w", err)
	}
	rec, err := e.store.Create(ctx, journey.Journey{Name: name, OwnerID: e.owner()})
	if err != nil {
		return State{}, err
	}

	e.mu.Lock()
	e.openLocked(rec)
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
	return st, nil
}

// Close flushes pending saves and forgets the open journey
func (e *Editor) Close(ctx context.Context) error {
	if err := e.saver.Flush(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.open = false
	e.meta = journey.Journey{}
	e.graph = journey.Graph{}
	e.history.Clear()
	e.selNode, e.selEdge, e.gesture = "", "", nil
	e.unsaved = false
	st := e.stateLocked()
	e.mu.Unlock()

	e.notify(st)
	return nil
}

// Persist saves the open journey now
func (e *Editor) Persist(ctx context.Context) error {
	return e.saver.Immediate(ctx, e.persist)
}

// SaveDebounced arms a debounced save of the open journey
func (e *Editor) SaveDebounced() {
	e.saver.Debounced(e.persist)
}

func (e *Editor) openLocked(rec *journey.Record) {
	e.open = true
	e.meta = rec.Journey
	e.meta.Nodes, e.meta.Edges = nil, nil
	e.graph = rec.Graph().Clone()
	e.base = rec.UpdatedAt
	e.lastEdit = time.Time{}
	e.unsaved = false
	e.selNode, e.selEdge, e.gesture = "", "", nil
	e.history.Clear()
}

// persist writes the current in-memory journey through the mutation API.
// The patch carries the time of the last edit, so a save computed from state
// older than the stored record is absorbed; the stored content is then
// adopted if nothing was edited meanwhile.
func (e *Editor) persist(ctx context.Context) (model.Ref, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return model.Ref{}, nil
	}
	snapshot := e.journeyLocked()
	stamp := e.lastEdit
	if e.base.After(stamp) {
		stamp = e.base
	}
	e.mu.Unlock()

	patch := journey.ContentPatch(snapshot)
	patch.UpdatedAt = &stamp
	rec, err := e.store.Update(ctx, snapshot.ID, patch)
	if err != nil {
		return model.Ref{}, err
	}

	absorbed := !sameContent(rec.Journey, stored(snapshot))

	e.mu.Lock()
	changed := false
	if e.open && e.meta.ID == snapshot.ID {
		e.base = rec.UpdatedAt
		if sameContent(e.journeyLocked(), snapshot) {
			if absorbed {
				e.logger.Info("stored journey is newer, adopting it", zap.String("id", snapshot.ID))
				e.meta = rec.Journey
				e.meta.Nodes, e.meta.Edges = nil, nil
				e.graph = rec.Graph().Clone()
				e.dropStaleSelectionLocked()
			}
			changed = e.unsaved || absorbed
			e.unsaved = false
		}
	}
	st := e.stateLocked()
	e.mu.Unlock()

	if changed {
		e.notify(st)
	}
	return model.Ref{Kind: model.KindJourney, ID: snapshot.ID}, nil
}

// stored returns j as the mutation API would store it
func stored(j journey.Journey) journey.Journey {
	j = j.Clone()
	g := journey.StripPlaceholders(j.Graph())
	j.Nodes, j.Edges = g.Nodes, g.Edges
	journey.Normalize(&j)
	return j
}

func sameContent(a, b journey.Journey) bool {
	return a.Name == b.Name && a.Description == b.Description && a.JournalID == b.JournalID &&
		a.Visibility == b.Visibility && a.Graph().Equal(b.Graph())
}

func (e *Editor) journeyLocked() journey.Journey {
	j := e.meta
	g := e.graph.Clone()
	j.Nodes, j.Edges = g.Nodes, g.Edges
	return j
}

func (e *Editor) stateLocked() State {
	if !e.open {
		return State{}
	}
	g := e.graph.Clone()
	return State{
		Open:           true,
		JourneyID:      e.meta.ID,
		Name:           e.meta.Name,
		Description:    e.meta.Description,
		JournalID:      e.meta.JournalID,
		Visibility:     e.meta.Visibility,
		Nodes:          g.Nodes,
		Edges:          g.Edges,
		SelectedNodeID: e.selNode,
		SelectedEdgeID: e.selEdge,
		Unsaved:        e.unsaved,
		CanUndo:        e.history.CanUndo(),
		CanRedo:        e.history.CanRedo(),
	}
}

func (e *Editor) dropStaleSelectionLocked() {
	if e.selNode != "" && e.graph.NodeIndex(e.selNode) < 0 {
		e.selNode = ""
	}
	if e.selEdge != "" && e.graph.EdgeIndex(e.selEdge) < 0 {
		e.selEdge = ""
	}
}

func (e *Editor) notify(st State) {
	e.subMu.Lock()
	subs := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
