package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/service"
)

// BackupController handles snapshot backup commands
type BackupController struct {
	root *RootBuilder
}

// NewBackupController creates a new backup controller
func NewBackupController(root *RootBuilder) *BackupController {
	return &BackupController{root: root}
}

// BuildCommand builds the 'backup' command tree
func (c *BackupController) BuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage snapshot backups of journeys",
	}
	cmd.AddCommand(c.CreateCommand(), c.ListCommand(), c.RestoreCommand())
	return cmd
}

// CreateCommand creates 'backup create' command
func (c *BackupController) CreateCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "create [journey-id]",
		Short: "Snapshot a journey and its journals",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := journeyID(ctx, app, firstArg(args))
			if err != nil {
				return p.PresentError(err)
			}
			f, err := service.ParseFormat(format)
			if err != nil {
				return p.PresentError(err)
			}
			if err := app.Autosave.FlushAll(ctx); err != nil {
				return p.PresentError(err)
			}
			meta, err := app.Exports.CreateBackup(ctx, id, f)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Backup created", meta)
		}),
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Snapshot format: json or yaml")
	return cmd
}

// ListCommand creates 'backup list' command
func (c *BackupController) ListCommand() *cobra.Command {
	var journeyID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			list, err := app.Exports.ListBackups(ctx, journeyID)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess(fmt.Sprintf("%d backups", len(list)), list)
		}),
	}

	cmd.Flags().StringVarP(&journeyID, "journey", "j", "", "Only snapshots of this journey")
	return cmd
}

// RestoreCommand creates 'backup restore' command
func (c *BackupController) RestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [snapshot-id]",
		Short: "Restore a snapshot as a new journey",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			rec, err := app.Exports.RestoreBackup(ctx, args[0], app.Session.Identity().UserID)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Backup restored", dto.NewJourneyDetail(rec))
		}),
	}
}
