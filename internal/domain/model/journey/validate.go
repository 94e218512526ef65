package journey

import (
	"math"
	"strconv"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// MaxNameLength bounds journey names and node labels; the max=200 tags match it
const MaxNameLength = 200

// Normalize fills defaults and canonicalizes user text in place
func Normalize(j *Journey) {
	j.Name = model.NormalizeText(j.Name)
	if j.Name == "" {
		j.Name = DefaultName
	}
	j.Description = model.NormalizeText(j.Description)
	if j.Visibility == "" {
		j.Visibility = VisibilityPrivate
	}
	if j.Nodes == nil {
		j.Nodes = []Node{}
	}
	if j.Edges == nil {
		j.Edges = []Edge{}
	}
	for i := range j.Nodes {
		n := &j.Nodes[i]
		n.Label = model.NormalizeText(n.Label)
		if n.Status == "" {
			n.Status = StatusNotStarted
		}
	}
	for i := range j.Edges {
		if j.Edges[i].Type == "" {
			j.Edges[i].Type = DefaultEdgeType
		}
	}
}

// Validate checks the invariants of a persistable journey. Field rules live
// in the struct tags; the graph rules are checked here: unique node and edge
// IDs, exactly one milestone in a non-empty journey, and edges whose
// endpoints exist in the same journey.
func Validate(j Journey) error {
	errs := model.NewValidationErrors()
	if err := model.ValidateStruct(j); err != nil {
		tagErrs, ok := model.AsValidationErrors(err)
		if !ok {
			return err
		}
		errs.Merge(tagErrs)
	}

	nodeIDs := make(map[string]struct{}, len(j.Nodes))
	milestones := 0
	for i, n := range j.Nodes {
		validateGeometry(errs, i, n)
		if n.ID != "" {
			if _, dup := nodeIDs[n.ID]; dup {
				errs.Add(nodeField(i, "id"), "duplicate node id %q", n.ID)
			}
			nodeIDs[n.ID] = struct{}{}
		}
		if n.IsRoot() {
			milestones++
		}
	}
	if len(j.Nodes) > 0 && milestones != 1 {
		errs.Add("nodes", "must contain exactly one milestone, found %d", milestones)
	}

	edgeIDs := make(map[string]struct{}, len(j.Edges))
	for i, e := range j.Edges {
		field := func(name string) string { return edgeField(i, name) }
		if e.ID != "" {
			if _, dup := edgeIDs[e.ID]; dup {
				errs.Add(field("id"), "duplicate edge id %q", e.ID)
			}
			edgeIDs[e.ID] = struct{}{}
		}
		if _, ok := nodeIDs[e.Source]; !ok {
			errs.Add(field("source"), "references unknown node %q", e.Source)
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			errs.Add(field("target"), "references unknown node %q", e.Target)
		}
		if e.Source != "" && e.Source == e.Target {
			errs.Add(field("target"), "must differ from source")
		}
	}

	return errs.OrNil()
}

func validateGeometry(errs *model.ValidationErrors, i int, n Node) {
	if !finite(n.Position.X) || !finite(n.Position.Y) {
		errs.Add(nodeField(i, "position"), "must be finite")
	}
	if n.Size != nil && (n.Size.Width <= 0 || n.Size.Height <= 0 || !finite(n.Size.Width) || !finite(n.Size.Height)) {
		errs.Add(nodeField(i, "size"), "must be positive")
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func nodeField(i int, name string) string {
	return "nodes[" + strconv.Itoa(i) + "]." + name
}

func edgeField(i int, name string) string {
	return "edges[" + strconv.Itoa(i) + "]." + name
}
