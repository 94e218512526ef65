package journey

// NodeType is the role of a node in a journey
type NodeType string

const (
	NodeTypeMilestone NodeType = "milestone"
	NodeTypeGoal      NodeType = "goal"
	NodeTypeTask      NodeType = "task"
	// NodeTypeAdd is a transient placeholder drawn by the editor; it is never persisted
	NodeTypeAdd NodeType = "add"
)

// NodeStatus is the progress of a node
type NodeStatus string

const (
	StatusNotStarted NodeStatus = "not-started"
	StatusInProgress NodeStatus = "in-progress"
	StatusCompleted  NodeStatus = "completed"
)

// Position is a point on the canvas
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is an explicit node size set by resizing
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Node is a single milestone, goal or task
type Node struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Type        NodeType   `json:"type" yaml:"type" validate:"oneof=milestone goal task"`
	Position    Position   `json:"position" yaml:"position"`
	Size        *Size      `json:"size,omitempty" yaml:"size,omitempty"`
	Label       string     `json:"label" yaml:"label" validate:"max=200"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string     `json:"icon,omitempty" yaml:"icon,omitempty"`
	Status      NodeStatus `json:"status" yaml:"status" validate:"oneof=not-started in-progress completed"`
	JournalID   string     `json:"journalId,omitempty" yaml:"journalId,omitempty"`
}

// IsRoot reports whether n is the journey's undeletable entry point
func (n Node) IsRoot() bool {
	return n.Type == NodeTypeMilestone
}

// Clone returns a deep copy
func (n Node) Clone() Node {
	out := n
	if n.Size != nil {
		s := *n.Size
		out.Size = &s
	}
	return out
}

// DefaultEdgeType is the rendering tag given to edges created without one
const DefaultEdgeType = "default"

// Edge is a directed connection between two nodes of the same journey
type Edge struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Touches reports whether the edge starts or ends at nodeID
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
