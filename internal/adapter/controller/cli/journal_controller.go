package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
)

// JournalController handles journal CLI commands
type JournalController struct {
	root *RootBuilder
}

// NewJournalController creates a new journal controller
func NewJournalController(root *RootBuilder) *JournalController {
	return &JournalController{root: root}
}

// BuildCommand builds the 'journal' command tree
func (c *JournalController) BuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Manage journals",
	}
	cmd.AddCommand(c.NewCommand(), c.EditCommand(), c.ListCommand(), c.AttachCommand())
	return cmd
}

// NewCommand creates 'journal new' command
func (c *JournalController) NewCommand() *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			rec, err := app.Journals.Create(ctx, journal.Journal{
				Title:   firstArg(args),
				Content: content,
				OwnerID: app.Session.Identity().UserID,
			})
			if err != nil {
				return p.PresentError(err)
			}
			app.Sync.Schedule(model.Ref{Kind: model.KindJournal, ID: rec.ID})
			return p.PresentSuccess("Journal created", rec)
		}),
	}

	cmd.Flags().StringVarP(&content, "content", "c", "", "Journal content (HTML)")
	return cmd
}

// EditCommand creates 'journal edit' command
func (c *JournalController) EditCommand() *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "edit [journal-id]",
		Short: "Change a journal's title or content",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
		changed := cmd.Flags().Changed
		if !changed("title") && !changed("content") {
			return p.PresentError(errors.New("nothing to change: pass --title or --content"))
		}
		if _, err := app.JournalEditor.Open(ctx, args[0]); err != nil {
			return p.PresentError(err)
		}
		if changed("title") {
			if err := app.JournalEditor.SetTitle(title); err != nil {
				return p.PresentError(err)
			}
		}
		if changed("content") {
			if err := app.JournalEditor.SetContent(content); err != nil {
				return p.PresentError(err)
			}
		}
		if err := app.JournalEditor.Flush(ctx); err != nil {
			return p.PresentError(err)
		}
		rec, err := app.Journals.Get(ctx, args[0])
		if err != nil {
			return p.PresentError(err)
		}
		return p.PresentSuccess("Journal updated", rec)
	})

	cmd.Flags().StringVarP(&title, "title", "t", "", "Journal title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Journal content (HTML)")
	return cmd
}

// ListCommand creates 'journal list' command
func (c *JournalController) ListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local journals",
		Args:  cobra.NoArgs,
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			recs, err := app.Journals.List(ctx)
			if err != nil {
				return p.PresentError(err)
			}
			list := &dto.JournalList{Journals: make([]journal.Journal, 0, len(recs))}
			for _, rec := range recs {
				list.Journals = append(list.Journals, rec.Journal)
			}
			return p.PresentSuccess(fmt.Sprintf("%d journals", len(recs)), list)
		}),
	}
}

// AttachCommand creates 'journal attach' command
func (c *JournalController) AttachCommand() *cobra.Command {
	var journeyID, nodeID string

	cmd := &cobra.Command{
		Use:   "attach [journal-id]",
		Short: "Attach a journal to a journey or one of its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := openJourney(ctx, app, journeyID)
			if err != nil {
				return p.PresentError(err)
			}
			journalID := args[0]
			if nodeID != "" {
				err = app.Editor.UpdateNodeField(ctx, nodeID, editor.NodeUpdate{JournalID: &journalID})
			} else {
				err = app.Editor.UpdateMetadata(ctx, editor.MetadataUpdate{JournalID: &journalID})
			}
			if err != nil {
				return p.PresentError(err)
			}
			detail, err := saved(ctx, app, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journal attached", detail)
		}),
	}

	cmd.Flags().StringVarP(&journeyID, "journey", "j", "", "Journey ID (default: current)")
	cmd.Flags().StringVarP(&nodeID, "node", "n", "", "Attach to this node instead of the journey")
	return cmd
}
