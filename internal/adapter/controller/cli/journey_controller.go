package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/service"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// JourneyController handles journey-level CLI commands
type JourneyController struct {
	root *RootBuilder
}

// NewJourneyController creates a new journey controller
func NewJourneyController(root *RootBuilder) *JourneyController {
	return &JourneyController{root: root}
}

// BuildCommand builds the 'journey' command tree
func (c *JourneyController) BuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journey",
		Short: "Manage journeys",
	}
	cmd.AddCommand(
		c.NewCommand(),
		c.ListCommand(),
		c.ShowCommand(),
		c.RenameCommand(),
		c.DeleteCommand(),
		c.DuplicateCommand(),
		c.ExportCommand(),
		c.ImportCommand(),
	)
	return cmd
}

// NewCommand creates 'journey new' command
func (c *JourneyController) NewCommand() *cobra.Command {
	var (
		description string
		public      bool
	)

	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a journey and make it current",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			st, err := app.Editor.NewJourney(ctx, name)
			if err != nil {
				return p.PresentError(err)
			}

			u := editor.MetadataUpdate{}
			if description != "" {
				u.Description = &description
			}
			if public {
				v := journey.VisibilityPublic
				u.Visibility = &v
			}
			if u.Description != nil || u.Visibility != nil {
				if err := app.Editor.UpdateMetadata(ctx, u); err != nil {
					return p.PresentError(err)
				}
			}
			if err := app.Identity.SetCurrentJourney(ctx, st.JourneyID); err != nil {
				return p.PresentError(err)
			}

			detail, err := saved(ctx, app, st.JourneyID)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey created", detail)
		}),
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Journey description")
	cmd.Flags().BoolVar(&public, "public", false, "Make the journey readable by other users")

	return cmd
}

// ListCommand creates 'journey list' command
func (c *JourneyController) ListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local journeys",
		Args:  cobra.NoArgs,
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			recs, err := app.Journeys.List(ctx)
			if err != nil {
				return p.PresentError(err)
			}
			current, err := app.Identity.CurrentJourney(ctx)
			if err != nil {
				return p.PresentError(err)
			}
			list := &dto.JourneyList{Journeys: make([]dto.JourneySummary, 0, len(recs))}
			for _, rec := range recs {
				list.Journeys = append(list.Journeys, dto.NewJourneySummary(rec, current))
			}
			return p.PresentSuccess(fmt.Sprintf("%d journeys", len(recs)), list)
		}),
	}
}

// ShowCommand creates 'journey show' command
func (c *JourneyController) ShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [journey-id]",
		Short: "Show a journey and make it current",
		Long:  "Show a journey and make it current. A journey missing locally is fetched from the server.",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := openJourney(ctx, app, firstArg(args))
			if err != nil {
				return p.PresentError(err)
			}
			if err := app.Identity.SetCurrentJourney(ctx, id); err != nil {
				return p.PresentError(err)
			}
			rec, err := app.Journeys.Get(ctx, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey details", dto.NewJourneyDetail(rec))
		}),
	}
}

// RenameCommand creates 'journey rename' command
func (c *JourneyController) RenameCommand() *cobra.Command {
	var journeyFlag string

	cmd := &cobra.Command{
		Use:   "rename [name]",
		Short: "Rename a journey",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := openJourney(ctx, app, journeyFlag)
			if err != nil {
				return p.PresentError(err)
			}
			name := args[0]
			if err := app.Editor.UpdateMetadata(ctx, editor.MetadataUpdate{Name: &name}); err != nil {
				return p.PresentError(err)
			}
			detail, err := saved(ctx, app, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey renamed", detail)
		}),
	}

	cmd.Flags().StringVarP(&journeyFlag, "journey", "j", "", "Journey ID (default: current)")
	return cmd
}

// DeleteCommand creates 'journey delete' command
func (c *JourneyController) DeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [journey-id]",
		Short: "Delete a journey locally and on the server",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id := args[0]
			if app.Editor.JourneyID() == id {
				if err := app.Editor.Close(ctx); err != nil {
					return p.PresentError(err)
				}
			}
			if err := app.Sync.Delete(ctx, model.Ref{Kind: model.KindJourney, ID: id}); err != nil {
				return p.PresentError(err)
			}
			current, err := app.Identity.CurrentJourney(ctx)
			if err == nil && current == id {
				err = app.Identity.SetCurrentJourney(ctx, "")
			}
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey deleted", id)
		}),
	}
}

// DuplicateCommand creates 'journey duplicate' command
func (c *JourneyController) DuplicateCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "duplicate [journey-id]",
		Short: "Copy a journey and its journals under fresh IDs",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := journeyID(ctx, app, firstArg(args))
			if err != nil {
				return p.PresentError(err)
			}
			rec, err := app.Journeys.Duplicate(ctx, id, name)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey duplicated", dto.NewJourneyDetail(rec))
		}),
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the copy (default: \"<name> (copy)\")")
	return cmd
}

// ExportCommand creates 'journey export' command
func (c *JourneyController) ExportCommand() *cobra.Command {
	var (
		format string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "export [journey-id]",
		Short: "Export a journey with its journals as JSON or YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := journeyID(ctx, app, firstArg(args))
			if err != nil {
				return p.PresentError(err)
			}
			f, err := resolveFormat(format, file)
			if err != nil {
				return p.PresentError(err)
			}
			doc, err := app.Exports.Export(ctx, id)
			if err != nil {
				return p.PresentError(err)
			}
			data, err := doc.Encode(f)
			if err != nil {
				return p.PresentError(err)
			}
			if file == "" {
				_, err := c.root.out.Write(data)
				return err
			}
			if err := afero.WriteFile(app.Fs, file, data, 0o644); err != nil {
				return p.PresentError(fmt.Errorf("write %s: %w", file, err))
			}
			return p.PresentSuccess("Journey exported", file)
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: json or yaml (default: from file extension, else json)")
	cmd.Flags().StringVar(&file, "file", "", "Write to this file instead of stdout")
	return cmd
}

// ImportCommand creates 'journey import' command
func (c *JourneyController) ImportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import an exported journey as a new journey",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			file := args[0]
			f, err := resolveFormat(format, file)
			if err != nil {
				return p.PresentError(err)
			}
			data, err := afero.ReadFile(app.Fs, file)
			if err != nil {
				return p.PresentError(fmt.Errorf("read %s: %w", file, err))
			}
			doc, err := service.DecodeDocument(data, f)
			if err != nil {
				return p.PresentError(err)
			}
			rec, err := app.Exports.Import(ctx, doc, app.Session.Identity().UserID)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Journey imported", dto.NewJourneyDetail(rec))
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: json or yaml (default: from file extension)")
	return cmd
}

// resolveFormat prefers the flag, then the file extension
func resolveFormat(flag, file string) (service.Format, error) {
	if flag != "" {
		return service.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return service.FormatYAML, nil
	default:
		return service.FormatJSON, nil
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
