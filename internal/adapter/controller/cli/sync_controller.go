package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
)

// ErrNotConnected is returned by sync commands without a server session
var ErrNotConnected = errors.New("not connected to a sync server; set server_url in setting.yaml")

// SyncController handles sync, status and account commands
type SyncController struct {
	root *RootBuilder
}

// NewSyncController creates a new sync controller
func NewSyncController(root *RootBuilder) *SyncController {
	return &SyncController{root: root}
}

// SyncCommand creates 'sync' command
func (c *SyncController) SyncCommand() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes to the server",
		Long: `Push every modified or never-synced journey and journal to the server.
With --full, reconcile both ways: newer server copies replace local ones.`,
		Args: cobra.NoArgs,
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			if !app.Sync.Authenticated() {
				return p.PresentError(ErrNotConnected)
			}
			if !app.Sync.Online() {
				return p.PresentError(errors.New("server unreachable; changes stay local"))
			}
			if err := app.Autosave.FlushAll(ctx); err != nil {
				return p.PresentError(err)
			}

			result := &dto.SyncResult{Full: full}
			if full {
				report, err := app.Sync.SyncAll(ctx)
				if err != nil {
					return p.PresentError(err)
				}
				result.Pushed, result.Pulled = report.Pushed, report.Pulled
				for _, e := range report.Errors {
					result.Errors = append(result.Errors, e.ID+": "+e.Error)
				}
			} else {
				n, err := app.Sync.ForceSync(ctx)
				result.Pushed = n
				if err != nil {
					return p.PresentError(err)
				}
			}
			return p.PresentSuccess("Sync complete", result)
		}),
	}

	cmd.Flags().BoolVar(&full, "full", false, "Reconcile both ways instead of only pushing")
	return cmd
}

// StatusCommand creates 'status' command
func (c *SyncController) StatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, connectivity and pending changes",
		Args:  cobra.NoArgs,
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			st, err := app.Session.Status(ctx)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Sync status", st)
		}),
	}
}

// AccountCommand builds the 'account' command tree
func (c *SyncController) AccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the sync account",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "link [account-token]",
		Short: "Sign in and move this installation's anonymous journeys to the account",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			result, err := app.Session.LinkAccount(ctx, args[0])
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Account linked", result)
		}),
	})
	return cmd
}
