package journey

import (
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// DefaultName is given to journeys created without one
const DefaultName = "Untitled journey"

// Visibility controls who may read a journey on the server
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Journey is a directed graph of milestones, goals and tasks
type Journey struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Name        string     `json:"name" yaml:"name" validate:"required,max=200"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []Node     `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges       []Edge     `json:"edges" yaml:"edges" validate:"dive"`
	JournalID   string     `json:"journalId,omitempty" yaml:"journalId,omitempty"`
	Visibility  Visibility `json:"visibility" yaml:"visibility" validate:"oneof=private public"`
	OwnerID     string     `json:"ownerId" yaml:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// EntityID implements model.Entity
func (j Journey) EntityID() string { return j.ID }

// Owner implements model.Entity
func (j Journey) Owner() string { return j.OwnerID }

// LastUpdated implements model.Entity
func (j Journey) LastUpdated() time.Time { return j.UpdatedAt }

// Clone returns a deep copy
func (j Journey) Clone() Journey {
	out := j
	g := j.Graph().Clone()
	out.Nodes, out.Edges = g.Nodes, g.Edges
	return out
}

// Graph returns the journey's content as a graph value sharing j's slices
func (j Journey) Graph() Graph {
	return Graph{Nodes: j.Nodes, Edges: j.Edges}
}

// Root returns the milestone node, if any
func (j Journey) Root() (Node, bool) {
	for _, n := range j.Nodes {
		if n.Type == NodeTypeMilestone {
			return n, true
		}
	}
	return Node{}, false
}

// JournalRefs returns every journal ID referenced by the journey or its nodes, without duplicates
func (j Journey) JournalRefs() []string {
	var refs []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	add(j.JournalID)
	for _, n := range j.Nodes {
		add(n.JournalID)
	}
	return refs
}

// Record is a journey as held by the local store
type Record struct {
	Journey         `yaml:",inline"`
	model.SyncState `yaml:",inline"`
}

// NewRecord wraps j with the given sync state
func NewRecord(j Journey, state model.SyncState) *Record {
	return &Record{Journey: j, SyncState: state}
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	out := &Record{Journey: r.Journey.Clone(), SyncState: r.SyncState}
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		out.SyncedAt = &t
	}
	return out
}
