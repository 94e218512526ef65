package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/adapter/controller/cli"
	"github.com/journeygrid/journeygrid/internal/adapter/gateway/backup"
	"github.com/journeygrid/journeygrid/internal/adapter/gateway/remote"
	"github.com/journeygrid/journeygrid/internal/application/autosave"
	"github.com/journeygrid/journeygrid/internal/application/dto"
	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/scheduler"
	"github.com/journeygrid/journeygrid/internal/application/service"
	"github.com/journeygrid/journeygrid/internal/application/syncengine"
	infraconfig "github.com/journeygrid/journeygrid/internal/infra/config"
	"github.com/journeygrid/journeygrid/internal/infrastructure/auth"
	sqliterepo "github.com/journeygrid/journeygrid/internal/infrastructure/persistence/sqlite"
	"github.com/journeygrid/journeygrid/internal/infrastructure/transaction"
)

// loopQueueSize bounds the timer callbacks waiting on the scheduler loop
const loopQueueSize = 64

// OpenApp opens the local database and wires one editing session on it.
// The session resolves its identity against the server when one is
// configured and reachable; otherwise it works locally.
func (c *Container) OpenApp(ctx context.Context) (*cli.App, error) {
	if err := c.fs.MkdirAll(c.home, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", c.home, err)
	}
	db, err := sqliterepo.Open(c.cfg.DBPath())
	if err != nil {
		return nil, err
	}

	s := &session{container: c, db: db, logger: c.logger}
	app, err := s.wire(ctx)
	if err != nil {
		s.release()
		return nil, err
	}
	return app, nil
}

// session is the cli.Session of one command
type session struct {
	container *Container
	logger    *zap.Logger

	db       *sql.DB
	loop     *scheduler.Loop
	client   *remote.Client
	engine   *syncengine.Engine
	autosave *autosave.Policy
	journeys *service.JourneyService
	journals *service.JournalService
	ids      *service.IdentityService

	mu       sync.Mutex
	identity service.Identity
}

var _ cli.Session = (*session)(nil)

func (s *session) wire(ctx context.Context) (*cli.App, error) {
	c := s.container
	cfg := c.cfg

	journeyRepo := sqliterepo.NewJourneyRepository(s.db)
	journalRepo := sqliterepo.NewJournalRepository(s.db)
	settingsRepo := sqliterepo.NewSettingsRepository(s.db)
	tx := transaction.NewSQLiteTransactionManager(s.db)

	s.journeys = service.NewJourneyService(journeyRepo, journalRepo, tx, service.SystemClock{}, s.logger)
	s.journals = service.NewJournalService(journalRepo, journeyRepo, tx, service.SystemClock{}, s.logger)
	s.ids = service.NewIdentityService(settingsRepo, auth.SubjectOf, s.logger)

	s.loop = scheduler.NewLoop(loopQueueSize)

	var gateway output.RemoteGateway = remote.Offline{}
	var issuer service.AnonymousIssuer
	if cfg.ServerURL() != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL:         cfg.ServerURL(),
			BreakerFailures: uint32(cfg.BreakerFailures()),
			BreakerTimeout:  cfg.BreakerTimeout(),
		}, s.token, remote.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.client = client
		gateway = client
		issuer = client
	}

	identity, err := s.ids.Resolve(ctx, cfg.AuthToken(), issuer)
	if err != nil {
		return nil, err
	}
	s.identity = identity
	if identity.Previous != "" && identity.Previous != identity.UserID {
		if err := s.reassignLocal(ctx, identity.Previous, identity.UserID); err != nil {
			return nil, err
		}
	}

	s.engine = syncengine.NewEngine(s.loop, gateway, s.journeys, s.journals, syncengine.Config{
		RemoteDelay: cfg.RemoteDelay(),
		IdleAfter:   cfg.IdleAfter(),
	}, syncengine.WithLogger(s.logger), syncengine.WithMetrics(c.metrics))
	if identity.Authenticated() {
		s.engine.Login(identity.UserID)
		s.engine.SetOnline(gateway.Ping(ctx) == nil)
	}

	s.autosave = autosave.NewPolicy(s.loop, autosave.Config{
		LocalDelay:   cfg.LocalDelay(),
		JournalDelay: cfg.JournalDelay(),
	}, s.engine,
		autosave.WithLogger(s.logger),
		autosave.WithMetrics(c.metrics),
		autosave.WithErrorHandler(func(err error) {
			s.logger.Warn("background save failed", zap.Error(err))
		}),
	)

	editorOpts := []editor.Option{
		editor.WithOwner(func() string { return s.Identity().UserID }),
		editor.WithHistoryLimit(cfg.HistoryLimit()),
		editor.WithLogger(s.logger),
	}
	if s.client != nil {
		editorOpts = append(editorOpts, editor.WithRemote(s.client.Journeys()))
	}

	backups, err := c.backupGateway(ctx)
	if err != nil {
		return nil, err
	}

	return &cli.App{
		Journeys:      s.journeys,
		Journals:      s.journals,
		Exports:       service.NewExportService(s.journeys, s.journals, tx, backups, service.SystemClock{}, s.logger),
		Identity:      s.ids,
		Editor:        editor.New(s.journeys, s.autosave, editorOpts...),
		JournalEditor: editor.NewJournalEditor(s.journals, s.autosave, s.loop.Now),
		Autosave:      s.autosave,
		Sync:          s.engine,
		Fs:            c.fs,
		Session:       s,
	}, nil
}

// backupGateway builds the snapshot store selected by backup.type
func (c *Container) backupGateway(ctx context.Context) (output.BackupGateway, error) {
	cfg := c.cfg
	switch cfg.BackupType() {
	case "local":
		return backup.NewLocalBackupGateway(c.fs, cfg.BackupBaseDir())
	case "s3":
		if cfg.BackupS3Bucket() == "" {
			return nil, errors.New("backup.s3_bucket is required for S3 backups")
		}
		return backup.NewS3BackupGateway(ctx, backup.S3Config{
			Bucket: cfg.BackupS3Bucket(),
			Prefix: cfg.BackupS3Prefix(),
			Region: cfg.BackupS3Region(),
		})
	case "mock":
		return backup.NewMemoryBackupGateway(), nil
	default:
		return nil, fmt.Errorf("unknown backup type: %s", cfg.BackupType())
	}
}

// token is the bearer token source of the remote client
func (s *session) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Token
}

// Identity returns who the session acts as
func (s *session) Identity() service.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Status describes the session
func (s *session) Status(ctx context.Context) (*dto.SyncStatus, error) {
	id := s.Identity()
	status, lastErr := s.engine.Status()

	pendingJourneys, err := s.journeys.PendingTracked(ctx)
	if err != nil {
		return nil, err
	}
	pendingJournals, err := s.journals.PendingTracked(ctx)
	if err != nil {
		return nil, err
	}

	out := &dto.SyncStatus{
		ServerURL:       s.container.cfg.ServerURL(),
		UserID:          id.UserID,
		Anonymous:       id.Anonymous,
		Authenticated:   s.engine.Authenticated(),
		Online:          s.engine.Online(),
		Status:          status.String(),
		PendingJourneys: len(pendingJourneys),
		PendingJournals: len(pendingJournals),
	}
	if lastErr != nil {
		out.LastError = lastErr.Error()
	}
	if s.client != nil {
		out.Breaker = s.client.BreakerState().String()
	}
	return out, nil
}

// LinkAccount switches the session to the account behind accountToken and
// moves the anonymous identity's records to it, on the server when an
// anonymous token exists and locally otherwise. The token is saved to
// setting.yaml so later commands use the account.
func (s *session) LinkAccount(ctx context.Context, accountToken string) (*dto.LinkResult, error) {
	if s.client == nil {
		return nil, cli.ErrNotConnected
	}
	userID, err := auth.SubjectOf(accountToken)
	if err != nil {
		return nil, fmt.Errorf("invalid account token: %w", err)
	}
	anonymousToken, err := s.ids.AnonymousToken(ctx)
	if err != nil {
		return nil, err
	}

	previous := s.Identity()
	s.mu.Lock()
	s.identity = service.Identity{UserID: userID, Token: accountToken}
	s.mu.Unlock()

	s.engine.Logout()
	s.engine.Login(userID)
	s.engine.SetOnline(s.client.Ping(ctx) == nil)

	moved := 0
	if anonymousToken != "" && previous.Anonymous {
		n, err := s.engine.MigrateAnonymous(ctx, anonymousToken, previous.UserID)
		if err != nil {
			return nil, err
		}
		if err := s.ids.Forget(ctx); err != nil {
			return nil, err
		}
		moved = n
	} else if previous.UserID != userID {
		if err := s.reassignLocal(ctx, previous.UserID, userID); err != nil {
			return nil, err
		}
	}

	if err := infraconfig.SaveAuthToken(s.container.fs, s.container.home, accountToken); err != nil {
		return nil, err
	}
	s.logger.Info("account linked", zap.String("user_id", userID), zap.Int("moved", moved))
	return &dto.LinkResult{UserID: userID, Moved: moved}, nil
}

func (s *session) reassignLocal(ctx context.Context, from, to string) error {
	if _, err := s.journals.ReassignOwner(ctx, from, to); err != nil {
		return fmt.Errorf("reassign local journals failed: %w", err)
	}
	if _, err := s.journeys.ReassignOwner(ctx, from, to); err != nil {
		return fmt.Errorf("reassign local journeys failed: %w", err)
	}
	return nil
}

// Close writes pending saves, pushes them when the session may sync, and
// releases the database. A failed push is logged; the changes stay pending.
func (s *session) Close(ctx context.Context) error {
	err := s.autosave.FlushAll(ctx)

	if s.container.cfg.AutoSync() && s.engine.Authenticated() && s.engine.Online() {
		if n, syncErr := s.engine.ForceSync(ctx); syncErr != nil {
			s.logger.Warn("sync on exit failed", zap.Error(syncErr))
		} else if n > 0 {
			s.logger.Info("sync on exit", zap.Int("pushed", n))
		}
	}

	s.engine.Close()
	if relErr := s.release(); err == nil {
		err = relErr
	}
	return err
}

func (s *session) release() error {
	if s.autosave != nil {
		s.autosave.Cancel()
	}
	if s.loop != nil {
		s.loop.Stop()
	}
	return s.db.Close()
}
