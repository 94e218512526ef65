package journey

// Graph is an immutable {nodes, edges} pair used for history snapshots
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy; nil slices become empty slices
func (g Graph) Clone() Graph {
	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = n.Clone()
	}
	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)
	return Graph{Nodes: nodes, Edges: edges}
}

// Equal reports whether two graphs hold the same nodes and edges in the same order
func (g Graph) Equal(other Graph) bool {
	if len(g.Nodes) != len(other.Nodes) || len(g.Edges) != len(other.Edges) {
		return false
	}
	for i := range g.Nodes {
		if !nodeEqual(g.Nodes[i], other.Nodes[i]) {
			return false
		}
	}
	for i := range g.Edges {
		if g.Edges[i] != other.Edges[i] {
			return false
		}
	}
	return true
}

// NodeIndex returns the index of the node with id, or -1
func (g Graph) NodeIndex(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// EdgeIndex returns the index of the edge with id, or -1
func (g Graph) EdgeIndex(id string) int {
	for i, e := range g.Edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// HasRoot reports whether the graph holds a milestone node
func (g Graph) HasRoot() bool {
	for _, n := range g.Nodes {
		if n.IsRoot() {
			return true
		}
	}
	return false
}

// WithoutNodes removes the named nodes and every edge touching them.
// Milestone nodes are never removed.
func (g Graph) WithoutNodes(ids ...string) Graph {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := Graph{Nodes: make([]Node, 0, len(g.Nodes)), Edges: make([]Edge, 0, len(g.Edges))}
	removed := make(map[string]struct{})
	for _, n := range g.Nodes {
		if _, ok := drop[n.ID]; ok && !n.IsRoot() {
			removed[n.ID] = struct{}{}
			continue
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range g.Edges {
		_, s := removed[e.Source]
		_, t := removed[e.Target]
		if s || t {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out
}

// StripPlaceholders drops transient "add" nodes and the edges that touch them
func StripPlaceholders(g Graph) Graph {
	var placeholders []string
	for _, n := range g.Nodes {
		if n.Type == NodeTypeAdd {
			placeholders = append(placeholders, n.ID)
		}
	}
	if len(placeholders) == 0 {
		return g
	}
	return g.WithoutNodes(placeholders...)
}

func nodeEqual(a, b Node) bool {
	if (a.Size == nil) != (b.Size == nil) {
		return false
	}
	if a.Size != nil && *a.Size != *b.Size {
		return false
	}
	a.Size, b.Size = nil, nil
	return a == b
}
