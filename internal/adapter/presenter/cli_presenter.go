package presenter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// CLIPresenter implements output.Presenter for human-readable terminal output
type CLIPresenter struct {
	output io.Writer
}

// NewCLIPresenter creates a new CLI presenter
func NewCLIPresenter(output io.Writer) output.Presenter {
	return &CLIPresenter{output: output}
}

// PresentSuccess presents a successful result
func (p *CLIPresenter) PresentSuccess(message string, data interface{}) error {
	fmt.Fprintf(p.output, "✓ %s\n", message)
	if data == nil {
		return nil
	}
	fmt.Fprintln(p.output)

	switch v := data.(type) {
	case *dto.JourneyList:
		p.presentJourneyList(v)
	case *dto.JourneyDetail:
		p.presentJourney(v)
	case *journey.Record:
		p.presentJourney(dto.NewJourneyDetail(v))
	case *dto.JournalList:
		p.presentJournalList(v)
	case *journal.Record:
		p.presentJournal(v.Journal)
	case journey.Node:
		fmt.Fprintf(p.output, "Node: %s (%s) %q at (%g, %g)\n", v.ID, v.Type, v.Label, v.Position.X, v.Position.Y)
	case journey.Edge:
		fmt.Fprintf(p.output, "Edge: %s  %s -> %s\n", v.ID, v.Source, v.Target)
	case *dto.SyncStatus:
		p.presentStatus(v)
	case *dto.SyncResult:
		p.presentSyncResult(v)
	case *dto.LinkResult:
		fmt.Fprintf(p.output, "Account: %s\nMoved: %d\n", v.UserID, v.Moved)
	case *output.SnapshotMetadata:
		p.presentSnapshots([]*output.SnapshotMetadata{v})
	case []*output.SnapshotMetadata:
		p.presentSnapshots(v)
	case *dto.VersionInfo:
		fmt.Fprintf(p.output, "Version: %s\n", v.Version)
		if v.BuildInfo != "" {
			fmt.Fprintf(p.output, "Build: %s\n", v.BuildInfo)
		}
	case string:
		fmt.Fprintln(p.output, v)
	default:
		fmt.Fprintf(p.output, "%+v\n", data)
	}
	return nil
}

// PresentError presents an error
func (p *CLIPresenter) PresentError(err error) error {
	fmt.Fprintf(p.output, "✗ Error: %v\n", err)
	if verr, ok := model.AsValidationErrors(err); ok {
		fields := verr.ToMap()
		for _, f := range verr.Fields() {
			for _, msg := range fields[f] {
				fmt.Fprintf(p.output, "  %s: %s\n", f, msg)
			}
		}
	}
	return err
}

// PresentProgress presents progress information
func (p *CLIPresenter) PresentProgress(message string, progress int, total int) error {
	if total <= 0 {
		fmt.Fprintf(p.output, "\r%s", message)
		return nil
	}
	if progress > total {
		progress = total
	}
	percentage := float64(progress) / float64(total) * 100
	bar := strings.Repeat("█", progress) + strings.Repeat("░", total-progress)
	fmt.Fprintf(p.output, "\r%s [%s] %.1f%%", message, bar, percentage)
	if progress == total {
		fmt.Fprintln(p.output)
	}
	return nil
}

func (p *CLIPresenter) presentJourneyList(list *dto.JourneyList) {
	if len(list.Journeys) == 0 {
		fmt.Fprintln(p.output, "No journeys.")
		return
	}
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tNODES\tEDGES\tUPDATED\tSYNC")
	for _, j := range list.Journeys {
		mark := ""
		if j.Current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			mark, j.ID, j.Name, j.Nodes, j.Edges, formatTime(j.UpdatedAt), syncLabel(j.IsDirty, j.SyncedAt))
	}
	w.Flush()
}

func (p *CLIPresenter) presentJourney(d *dto.JourneyDetail) {
	j := d.Journey
	fmt.Fprintf(p.output, "Journey: %s\n", j.Name)
	fmt.Fprintf(p.output, "ID: %s\n", j.ID)
	if j.Description != "" {
		fmt.Fprintf(p.output, "Description: %s\n", j.Description)
	}
	fmt.Fprintf(p.output, "Visibility: %s\n", j.Visibility)
	if j.JournalID != "" {
		fmt.Fprintf(p.output, "Journal: %s\n", j.JournalID)
	}
	fmt.Fprintf(p.output, "Updated: %s\n", formatTime(j.UpdatedAt))
	fmt.Fprintf(p.output, "Sync: %s\n", syncLabel(d.IsDirty, d.SyncedAt))

	if len(j.Nodes) > 0 {
		fmt.Fprintf(p.output, "\nNodes (%d):\n", len(j.Nodes))
		w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
		for _, n := range j.Nodes {
			extra := ""
			if n.JournalID != "" {
				extra = "journal " + n.JournalID
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t(%g, %g)\t%s\n",
				n.ID, n.Type, n.Label, n.Status, n.Position.X, n.Position.Y, extra)
		}
		w.Flush()
	}
	if len(j.Edges) > 0 {
		fmt.Fprintf(p.output, "\nEdges (%d):\n", len(j.Edges))
		for _, e := range j.Edges {
			fmt.Fprintf(p.output, "  %s  %s -> %s\n", e.ID, e.Source, e.Target)
		}
	}
}

func (p *CLIPresenter) presentJournalList(list *dto.JournalList) {
	if len(list.Journals) == 0 {
		fmt.Fprintln(p.output, "No journals.")
		return
	}
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSIZE\tUPDATED")
	for _, j := range list.Journals {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", j.ID, j.Title, len(j.Content), formatTime(j.UpdatedAt))
	}
	w.Flush()
}

func (p *CLIPresenter) presentJournal(j journal.Journal) {
	fmt.Fprintf(p.output, "Journal: %s\n", j.Title)
	fmt.Fprintf(p.output, "ID: %s\n", j.ID)
	fmt.Fprintf(p.output, "Updated: %s\n", formatTime(j.UpdatedAt))
	if j.Content != "" {
		fmt.Fprintf(p.output, "\n%s\n", j.Content)
	}
}

func (p *CLIPresenter) presentStatus(s *dto.SyncStatus) {
	server := s.ServerURL
	if server == "" {
		server = "(none, local only)"
	}
	fmt.Fprintf(p.output, "Server: %s\n", server)
	who := s.UserID
	if s.Anonymous {
		who += " (anonymous)"
	}
	fmt.Fprintf(p.output, "User: %s\n", who)
	fmt.Fprintf(p.output, "Online: %t\n", s.Online)
	fmt.Fprintf(p.output, "Status: %s\n", s.Status)
	if s.LastError != "" {
		fmt.Fprintf(p.output, "Last error: %s\n", s.LastError)
	}
	if s.Breaker != "" {
		fmt.Fprintf(p.output, "Breaker: %s\n", s.Breaker)
	}
	fmt.Fprintf(p.output, "Pending: %d journeys, %d journals\n", s.PendingJourneys, s.PendingJournals)
}

func (p *CLIPresenter) presentSyncResult(r *dto.SyncResult) {
	if r.Full {
		fmt.Fprintf(p.output, "Pushed: %d\nPulled: %d\n", r.Pushed, r.Pulled)
	} else {
		fmt.Fprintf(p.output, "Pushed: %d\n", r.Pushed)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(p.output, "  failed: %s\n", e)
	}
}

func (p *CLIPresenter) presentSnapshots(list []*output.SnapshotMetadata) {
	if len(list) == 0 {
		fmt.Fprintln(p.output, "No backups.")
		return
	}
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOURNEY\tNAME\tFORMAT\tSIZE\tCREATED")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.JourneyID, s.Metadata["name"], s.Format, s.Size, formatTime(s.CreatedAt))
	}
	w.Flush()
}

func syncLabel(dirty bool, syncedAt *time.Time) string {
	switch {
	case syncedAt == nil:
		return "never synced"
	case dirty:
		return "modified"
	default:
		return "synced " + formatTime(*syncedAt)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
