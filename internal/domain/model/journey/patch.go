package journey

import "time"

// Patch is a partial update of a journey. Nil fields are left untouched.
type Patch struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Nodes       *[]Node     `json:"nodes,omitempty"`
	Edges       *[]Edge     `json:"edges,omitempty"`
	JournalID   *string     `json:"journalId,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
	// UpdatedAt is the caller's view of when the change was made.
	// A patch older than the stored record is absorbed without effect.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// IsEmpty reports whether the patch changes no field
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Nodes == nil && p.Edges == nil &&
		p.JournalID == nil && p.Visibility == nil
}

// StaleFor reports whether the patch was made before the record's last write
func (p Patch) StaleFor(current time.Time) bool {
	return p.UpdatedAt != nil && p.UpdatedAt.Before(current)
}

// ApplyTo merges the patch into j
func (p Patch) ApplyTo(j *Journey) {
	if p.Name != nil {
		j.Name = *p.Name
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Nodes != nil {
		nodes := make([]Node, len(*p.Nodes))
		for i, n := range *p.Nodes {
			nodes[i] = n.Clone()
		}
		j.Nodes = nodes
	}
	if p.Edges != nil {
		j.Edges = append([]Edge(nil), *p.Edges...)
		if j.Edges == nil {
			j.Edges = []Edge{}
		}
	}
	if p.JournalID != nil {
		j.JournalID = *p.JournalID
	}
	if p.Visibility != nil {
		j.Visibility = *p.Visibility
	}
}

// ContentPatch builds a patch that replaces the whole content of j
func ContentPatch(j Journey) Patch {
	g := j.Graph().Clone()
	name, desc, journalID, vis := j.Name, j.Description, j.JournalID, j.Visibility
	return Patch{
		Name:        &name,
		Description: &desc,
		Nodes:       &g.Nodes,
		Edges:       &g.Edges,
		JournalID:   &journalID,
		Visibility:  &vis,
	}
}

// GraphPatch builds a patch that replaces only nodes and edges
func GraphPatch(g Graph) Patch {
	c := g.Clone()
	return Patch{Nodes: &c.Nodes, Edges: &c.Edges}
}
