// Package syncengine pushes local changes to the server of record and
// reconciles both stores. An Engine is one sync session: it is built by the
// composition root, gated by Login/Logout and by the connectivity signal, and
// owns the remote debounce timer and the status machine.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/scheduler"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// Default windows
const (
	DefaultRemoteDelay = 5 * time.Second
	DefaultIdleAfter   = time.Minute
)

var (
	// ErrNotAuthenticated is returned by account operations without a session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrOffline is returned by account operations without connectivity
	ErrOffline = errors.New("offline")
)

// Config holds the engine's timing
type Config struct {
	RemoteDelay time.Duration
	IdleAfter   time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m output.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithContext sets the context debounced pushes run under
func WithContext(ctx context.Context) Option {
	return func(e *Engine) { e.ctx = ctx }
}

// Engine is the remote sync session
type Engine struct {
	sched     scheduler.Scheduler
	remote    output.RemoteGateway
	syncers   map[model.Kind]syncer
	order     []model.Kind
	debounce  *scheduler.Debouncer
	idleAfter time.Duration
	logger    *zap.Logger
	metrics   output.Metrics
	ctx       context.Context

	// opMu serializes network operations
	opMu sync.Mutex

	mu       sync.Mutex
	status   Status
	lastErr  error
	userID   string
	authed   bool
	online   bool
	deferred model.Ref
	// scheduled is the ref the armed remote debounce will push
	scheduled model.Ref
	idle     scheduler.Timer
	idleGen  uint64
	subs     map[int]func(StatusEvent)
	nextSub  int
}

// NewEngine creates a logged-out, online engine
func NewEngine(
	sched scheduler.Scheduler,
	remote output.RemoteGateway,
	journeys Target[journey.Journey],
	journals Target[journal.Journal],
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.RemoteDelay <= 0 {
		cfg.RemoteDelay = DefaultRemoteDelay
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultIdleAfter
	}
	e := &Engine{
		sched:     sched,
		remote:    remote,
		debounce:  scheduler.NewDebouncer(sched, cfg.RemoteDelay),
		idleAfter: cfg.IdleAfter,
		logger:    zap.NewNop(),
		metrics:   output.NopMetrics{},
		ctx:       context.Background(),
		status:    StatusIdle,
		online:    true,
		subs:      make(map[int]func(StatusEvent)),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.syncers = map[model.Kind]syncer{
		model.KindJournal: &entitySyncer[journal.Journal]{
			local:  journals,
			remote: remote.Journals,
			logger: e.logger,
		},
		model.KindJourney: &entitySyncer[journey.Journey]{
			local:  journeys,
			remote: remote.Journeys,
			logger: e.logger,
		},
	}
	// journals first, so journeys pulled in the same pass find their journals
	e.order = []model.Kind{model.KindJournal, model.KindJourney}
	return e
}

// Login opens the session for userID
func (e *Engine) Login(userID string) {
	e.mu.Lock()
	e.userID = userID
	e.authed = true
	e.mu.Unlock()
	e.logger.Info("sync session started", zap.String("user_id", userID))
}

// Logout closes the session and cancels any pending push
func (e *Engine) Logout() {
	e.mu.Lock()
	e.debounce.Cancel()
	e.scheduled = model.Ref{}
	e.userID = ""
	e.authed = false
	e.deferred = model.Ref{}
	e.mu.Unlock()
	e.setStatus(StatusIdle, nil)
	e.logger.Info("sync session ended")
}

// UserID returns the session's user, or "" when logged out
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Authenticated reports whether a session is open
func (e *Engine) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authed
}

// Online reports the last connectivity signal
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Status returns the current status and the error of the last failed operation
func (e *Engine) Status() (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.lastErr
}

// Subscribe registers fn for status transitions. fn must not call back
// into network operations of the engine.
func (e *Engine) Subscribe(fn func(StatusEvent)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// PendingPush reports whether the remote debounce is armed
func (e *Engine) PendingPush() bool {
	return e.debounce.Pending()
}

// Schedule arms the remote debounce for ref. Every call within the window
// restarts it; only the most recent ref is pushed. No-op while logged out.
func (e *Engine) Schedule(ref model.Ref) {
	if ref.IsZero() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.authed {
		return
	}
	e.scheduled = ref
	e.debounce.Trigger(func() {
		e.mu.Lock()
		if e.scheduled == ref {
			e.scheduled = model.Ref{}
		}
		e.mu.Unlock()
		if err := e.SyncOne(e.ctx, ref); err != nil {
			e.logger.Warn("scheduled push failed", zap.Stringer("ref", ref), zap.Error(err))
		}
	})
}

// SyncOne pushes one entity's current local content. While logged out it
// does nothing; while offline it records the entity for the reconnect and
// does nothing else. Failures set the entity dirty again and are not retried.
func (e *Engine) SyncOne(ctx context.Context, ref model.Ref) error {
	s, err := e.syncer(ref.Kind)
	if err != nil {
		return err
	}
	if !e.Authenticated() {
		return nil
	}
	if !e.Online() {
		e.mu.Lock()
		e.deferred = ref
		e.mu.Unlock()
		e.setStatus(StatusOffline, nil)
		return nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.setStatus(StatusSyncing, nil)
	start := e.sched.Now()
	err = s.pushOne(ctx, ref.ID)
	if errors.Is(err, repository.ErrNotFound) {
		// deleted locally after the push was requested
		e.logger.Debug("nothing to push", zap.Stringer("ref", ref))
		e.setStatus(StatusIdle, nil)
		return nil
	}
	e.metrics.SyncCompleted("push", e.sched.Now().Sub(start), err)
	if err != nil {
		e.setStatus(StatusError, err)
		return err
	}
	e.setStatus(StatusSynced, nil)
	return nil
}

// SyncAll reconciles every local entity with the server. Per-item failures
// are reported without failing the pass; only a failed batch call does.
// Logged out or offline it returns an empty report.
func (e *Engine) SyncAll(ctx context.Context) (*Report, error) {
	if !e.ready() {
		return &Report{}, nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.setStatus(StatusSyncing, nil)
	start := e.sched.Now()
	report := &Report{}
	var err error
	for _, kind := range e.order {
		var r Report
		r, err = e.syncers[kind].reconcile(ctx)
		report.merge(r)
		if err != nil {
			break
		}
	}
	e.metrics.SyncCompleted("sync_all", e.sched.Now().Sub(start), err)
	if err != nil {
		e.setStatus(StatusError, err)
		return report, err
	}
	e.logger.Info("full sync completed",
		zap.Int("pushed", report.Pushed),
		zap.Int("pulled", report.Pulled),
		zap.Int("errors", len(report.Errors)))
	e.setStatus(StatusSynced, nil)
	return report, nil
}

// ForceSync cancels the pending debounce and pushes every dirty or
// never-synced entity now
func (e *Engine) ForceSync(ctx context.Context) (int, error) {
	e.mu.Lock()
	e.debounce.Cancel()
	e.scheduled = model.Ref{}
	e.mu.Unlock()
	if !e.ready() {
		return 0, nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.setStatus(StatusSyncing, nil)
	start := e.sched.Now()
	total := 0
	var errs []error
	for _, kind := range e.order {
		n, err := e.syncers[kind].pushPending(ctx)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	e.metrics.SyncCompleted("push", e.sched.Now().Sub(start), err)
	if err != nil {
		e.setStatus(StatusError, err)
		return total, err
	}
	e.setStatus(StatusSynced, nil)
	return total, nil
}

// SetOnline feeds the connectivity signal. Going offline shows the offline
// status; coming back re-arms the push that was skipped meanwhile.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	authed := e.authed
	deferred := e.deferred
	if online {
		e.deferred = model.Ref{}
	}
	status := e.status
	e.mu.Unlock()

	if was == online {
		return
	}
	if !online {
		if authed {
			e.setStatus(StatusOffline, nil)
		}
		return
	}
	if status == StatusOffline {
		e.setStatus(StatusIdle, nil)
	}
	if !deferred.IsZero() {
		e.Schedule(deferred)
	}
}

// Delete removes an entity locally and, when it had been pushed and the
// session can reach the server, remotely. A pending or deferred push of the
// entity is dropped. No tombstone is kept: a remote delete that fails is
// reported and not retried.
func (e *Engine) Delete(ctx context.Context, ref model.Ref) error {
	s, err := e.syncer(ref.Kind)
	if err != nil {
		return err
	}
	e.forget(ref)
	remote := e.Authenticated() && e.Online()
	if !remote {
		return s.delete(ctx, ref.ID, false)
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	start := e.sched.Now()
	err = s.delete(ctx, ref.ID, true)
	e.metrics.SyncCompleted("delete", e.sched.Now().Sub(start), err)
	if err != nil {
		e.logger.Warn("delete failed", zap.Stringer("ref", ref), zap.Error(err))
	}
	return err
}

// MigrateAnonymous links the anonymous identity behind anonymousToken to the
// session's account, then treats local records of anonymousUserID as the
// session user's.
func (e *Engine) MigrateAnonymous(ctx context.Context, anonymousToken, anonymousUserID string) (int, error) {
	if err := e.gate(); err != nil {
		return 0, err
	}
	userID := e.UserID()

	e.opMu.Lock()
	defer e.opMu.Unlock()

	start := e.sched.Now()
	moved, err := e.remote.LinkAccount(ctx, anonymousToken)
	e.metrics.SyncCompleted("migrate", e.sched.Now().Sub(start), err)
	if err != nil {
		return 0, fmt.Errorf("link account failed: %w", err)
	}
	for _, kind := range e.order {
		n, err := e.syncers[kind].reassign(ctx, anonymousUserID, userID)
		if err != nil {
			return moved, fmt.Errorf("reassign local %s failed: %w", kind, err)
		}
		e.logger.Info("local records reassigned", zap.Stringer("kind", kind), zap.Int("count", n))
	}
	return moved, nil
}

// Close cancels timers. Network calls in flight are not interrupted.
func (e *Engine) Close() {
	e.mu.Lock()
	e.debounce.Cancel()
	e.scheduled = model.Ref{}
	e.idleGen++
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
	e.mu.Unlock()
}

// forget drops the armed push and the deferred reconnect push when they name ref
func (e *Engine) forget(ref model.Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduled == ref {
		e.debounce.Cancel()
		e.scheduled = model.Ref{}
	}
	if e.deferred == ref {
		e.deferred = model.Ref{}
	}
}

// ready reports whether network operations may run, showing the offline
// status when the session is open but disconnected
func (e *Engine) ready() bool {
	e.mu.Lock()
	authed, online := e.authed, e.online
	e.mu.Unlock()
	if authed && !online {
		e.setStatus(StatusOffline, nil)
	}
	return authed && online
}

func (e *Engine) gate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.authed {
		return ErrNotAuthenticated
	}
	if !e.online {
		return ErrOffline
	}
	return nil
}

func (e *Engine) syncer(kind model.Kind) (syncer, error) {
	s, ok := e.syncers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return s, nil
}

// setStatus moves the status machine
func (e *Engine) setStatus(status Status, err error) {
	e.mu.Lock()
	ev, subs, changed := e.transitionLocked(status, err)
	e.mu.Unlock()
	e.publish(ev, subs, changed)
}

// transitionLocked records the new status. Entering synced arms the idle revert.
func (e *Engine) transitionLocked(status Status, err error) (StatusEvent, []func(StatusEvent), bool) {
	e.idleGen++
	if e.idle != nil {
		e.idle.Stop()
		e.idle = nil
	}
	changed := e.status != status || err != nil
	e.status = status
	e.lastErr = err
	if status == StatusSynced {
		gen := e.idleGen
		e.idle = e.sched.AfterFunc(e.idleAfter, func() { e.revertIdle(gen) })
	}
	return StatusEvent{Status: status, Err: err, At: e.sched.Now()}, e.subscribersLocked(), changed
}

func (e *Engine) publish(ev StatusEvent, subs []func(StatusEvent), changed bool) {
	if !changed {
		return
	}
	status, err := ev.Status, ev.Err
	if err != nil {
		e.logger.Warn("sync status changed", zap.Stringer("status", status), zap.Error(err))
	} else {
		e.logger.Info("sync status changed", zap.Stringer("status", status))
	}
	e.metrics.SyncStatusChanged(status.String())
	for _, fn := range subs {
		fn(ev)
	}
}

func (e *Engine) revertIdle(gen uint64) {
	e.mu.Lock()
	if gen != e.idleGen || e.status != StatusSynced {
		e.mu.Unlock()
		return
	}
	ev, subs, changed := e.transitionLocked(StatusIdle, nil)
	e.mu.Unlock()
	e.publish(ev, subs, changed)
}

func (e *Engine) subscribersLocked() []func(StatusEvent) {
	subs := make([]func(StatusEvent), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return subs
}
