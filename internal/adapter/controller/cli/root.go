package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/autosave"
	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/service"
	"github.com/journeygrid/journeygrid/internal/application/syncengine"
)

// ErrNoCurrentJourney is returned when a command needs a journey and none was given or opened
var ErrNoCurrentJourney = errors.New("no journey given and no current journey; pass --journey or run 'journey show <id>'")

// Session is the part of a command's runtime owned by the composition root
type Session interface {
	// Identity returns who the session acts as
	Identity() service.Identity

	// Status describes the session for the status command
	Status(ctx context.Context) (*dto.SyncStatus, error)

	// LinkAccount moves the anonymous identity's records to the account behind accountToken
	LinkAccount(ctx context.Context, accountToken string) (*dto.LinkResult, error)

	// Close flushes pending saves, force-syncs when allowed and releases resources
	Close(ctx context.Context) error
}

// App is the local editing session a command runs against
type App struct {
	Journeys      *service.JourneyService
	Journals      *service.JournalService
	Exports       *service.ExportService
	Identity      *service.IdentityService
	Editor        *editor.Editor
	JournalEditor *editor.JournalEditor
	Autosave      *autosave.Policy
	Sync          *syncengine.Engine
	Fs            afero.Fs
	Session       Session
}

// AppFactory opens the local session
type AppFactory func(ctx context.Context) (*App, error)

// ServeFunc runs the reference sync server until ctx is done
type ServeFunc func(ctx context.Context) error

// PresenterFactory builds the presenter for an --output value
type PresenterFactory func(format string) output.Presenter

// RootBuilder builds the root CLI command with all subcommands
type RootBuilder struct {
	open      AppFactory
	serve     ServeFunc
	presenter PresenterFactory
	out       io.Writer

	outputFormat string

	version   string
	buildInfo string
}

// NewRootBuilder creates a new root command builder. Raw documents such as
// exports are written to out; nil means stdout.
func NewRootBuilder(open AppFactory, serve ServeFunc, presenter PresenterFactory, out io.Writer, version, buildInfo string) *RootBuilder {
	if out == nil {
		out = os.Stdout
	}
	return &RootBuilder{
		open:      open,
		serve:     serve,
		presenter: presenter,
		out:       out,
		version:   version,
		buildInfo: buildInfo,
	}
}

// Build creates the root command with all subcommands
func (b *RootBuilder) Build() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journeygrid",
		Short: "JourneyGrid - local-first journey planner",
		Long: `JourneyGrid edits journeys (graphs of milestones, goals and tasks) and
their journals locally, and syncs them to a server when one is configured.`,
		Version:       b.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&b.outputFormat, "output", "o", "cli", "Output format (cli, json)")

	rootCmd.AddCommand(
		NewJourneyController(b).BuildCommand(),
		NewGraphController(b).NodeCommand(),
		NewGraphController(b).EdgeCommand(),
		NewJournalController(b).BuildCommand(),
		NewSyncController(b).SyncCommand(),
		NewSyncController(b).StatusCommand(),
		NewSyncController(b).AccountCommand(),
		NewBackupController(b).BuildCommand(),
		b.serveCommand(),
		b.versionCommand(),
	)

	return rootCmd
}

// Presenter returns the presenter selected by --output
func (b *RootBuilder) Presenter() output.Presenter {
	return b.presenter(b.outputFormat)
}

// commandFunc is the body of a command that runs against the local session
type commandFunc func(ctx context.Context, app *App, p output.Presenter, args []string) error

// run opens the session, runs fn and closes the session. A failure to close
// is reported unless fn already failed.
func (b *RootBuilder) run(fn commandFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		p := b.Presenter()

		app, err := b.open(ctx)
		if err != nil {
			return p.PresentError(err)
		}
		runErr := fn(ctx, app, p, args)
		if err := app.Session.Close(ctx); err != nil && runErr == nil {
			runErr = p.PresentError(err)
		}
		return runErr
	}
}

// serveCommand creates the 'serve' command
func (b *RootBuilder) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := b.serve(ctx); err != nil {
				return b.Presenter().PresentError(err)
			}
			return nil
		},
	}
}

// versionCommand creates the 'version' command
func (b *RootBuilder) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return b.Presenter().PresentSuccess("JourneyGrid Version", &dto.VersionInfo{
				Version:   b.version,
				BuildInfo: b.buildInfo,
			})
		},
	}
}

// journeyID returns explicit, or the current journey
func journeyID(ctx context.Context, app *App, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	id, err := app.Identity.CurrentJourney(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoCurrentJourney
	}
	return id, nil
}

// openJourney loads the journey into the editor
func openJourney(ctx context.Context, app *App, explicit string) (string, error) {
	id, err := journeyID(ctx, app, explicit)
	if err != nil {
		return "", err
	}
	if err := app.Editor.Load(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// saved persists the editor and returns the stored journey
func saved(ctx context.Context, app *App, id string) (*dto.JourneyDetail, error) {
	if err := app.Editor.Persist(ctx); err != nil {
		return nil, err
	}
	rec, err := app.Journeys.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewJourneyDetail(rec), nil
}
