package journey

import (
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// IDMap records the old-to-new ID mapping produced by Duplicate
type IDMap struct {
	Nodes map[string]string
	Edges map[string]string
}

// Duplicate clones src under fresh IDs. The journey, every node and every
// edge get a new ID; edge endpoints are remapped through the node mapping and
// edges whose endpoints are not in src are dropped. Journal references are
// copied verbatim; callers that must not share journals remap them with
// RemapJournals. Timestamps are cleared so the caller stamps the copy.
func Duplicate(src Journey) (Journey, IDMap) {
	ids := IDMap{
		Nodes: make(map[string]string, len(src.Nodes)),
		Edges: make(map[string]string, len(src.Edges)),
	}

	dst := src.Clone()
	dst.ID = model.NewID()
	dst.CreatedAt = time.Time{}
	dst.UpdatedAt = time.Time{}

	for i := range dst.Nodes {
		fresh := model.NewID()
		ids.Nodes[dst.Nodes[i].ID] = fresh
		dst.Nodes[i].ID = fresh
	}

	edges := make([]Edge, 0, len(dst.Edges))
	for _, e := range dst.Edges {
		source, okS := ids.Nodes[e.Source]
		target, okT := ids.Nodes[e.Target]
		if !okS || !okT {
			continue
		}
		fresh := model.NewID()
		ids.Edges[e.ID] = fresh
		edges = append(edges, Edge{ID: fresh, Source: source, Target: target, Type: e.Type})
	}
	dst.Edges = edges

	return dst, ids
}

// RemapJournals rewrites journal references in j through mapping.
// References with no entry in mapping are cleared.
func RemapJournals(j *Journey, mapping map[string]string) {
	remap := func(id string) string {
		if id == "" {
			return ""
		}
		return mapping[id]
	}
	j.JournalID = remap(j.JournalID)
	for i := range j.Nodes {
		j.Nodes[i].JournalID = remap(j.Nodes[i].JournalID)
	}
}

// ClearJournal removes every reference to journalID and reports whether any was found
func ClearJournal(j *Journey, journalID string) bool {
	found := false
	if j.JournalID == journalID {
		j.JournalID = ""
		found = true
	}
	for i := range j.Nodes {
		if j.Nodes[i].JournalID == journalID {
			j.Nodes[i].JournalID = ""
			found = true
		}
	}
	return found
}
