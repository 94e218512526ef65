// Package autosave decides when in-memory edits reach the local store and
// when the remote push for them is scheduled.
//
// A save is either immediate (written now, awaited) or debounced (written once
// the local window passes without another edit). Every completed save hands
// the saved entity to a RemoteScheduler, whose own, longer window is
// independent of the local one. Journals have a separate local window.
package autosave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/application/scheduler"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// Save modes, as reported to metrics
const (
	ModeImmediate = "immediate"
	ModeDebounced = "debounced"
	ModeFlush     = "flush"
)

// Default windows
const (
	DefaultLocalDelay   = time.Second
	DefaultJournalDelay = time.Second
)

// PersistFunc writes the current in-memory state through the mutation API
// and returns the entity it wrote. A zero Ref means nothing was written.
type PersistFunc func(ctx context.Context) (model.Ref, error)

// RemoteScheduler arms the remote push for a saved entity
type RemoteScheduler interface {
	Schedule(ref model.Ref)
}

// Config holds the local debounce windows
type Config struct {
	LocalDelay   time.Duration
	JournalDelay time.Duration
}

// Policy owns the local-save debounce timers
type Policy struct {
	ctx     context.Context
	local   *scheduler.Debouncer
	journal *scheduler.Debouncer
	remote  RemoteScheduler
	logger  *zap.Logger
	metrics output.Metrics
	clock   func() time.Time

	// localSave and journalSave are held while a save of that window runs,
	// so flushes wait for a debounced save already under way
	localSave   sync.Mutex
	journalSave sync.Mutex

	mu             sync.Mutex
	pendingLocal   PersistFunc
	pendingJournal PersistFunc
	onError        func(error)
}

// Option configures a Policy
type Option func(*Policy)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m output.Metrics) Option {
	return func(p *Policy) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithErrorHandler sets the callback for failed debounced saves,
// which have no caller to return an error to
func WithErrorHandler(fn func(error)) Option {
	return func(p *Policy) { p.onError = fn }
}

// WithContext sets the context debounced saves run under
func WithContext(ctx context.Context) Option {
	return func(p *Policy) { p.ctx = ctx }
}

// NewPolicy creates a policy on sched. remote may be nil when nothing is pushed.
func NewPolicy(sched scheduler.Scheduler, cfg Config, remote RemoteScheduler, opts ...Option) *Policy {
	if cfg.LocalDelay <= 0 {
		cfg.LocalDelay = DefaultLocalDelay
	}
	if cfg.JournalDelay <= 0 {
		cfg.JournalDelay = DefaultJournalDelay
	}
	p := &Policy{
		ctx:     context.Background(),
		local:   scheduler.NewDebouncer(sched, cfg.LocalDelay),
		journal: scheduler.NewDebouncer(sched, cfg.JournalDelay),
		remote:  remote,
		logger:  zap.NewNop(),
		metrics: output.NopMetrics{},
		clock:   sched.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Immediate cancels any pending debounced save and persists now, after a
// debounced save already under way
func (p *Policy) Immediate(ctx context.Context, persist PersistFunc) error {
	p.local.Cancel()
	p.mu.Lock()
	p.pendingLocal = nil
	p.mu.Unlock()

	p.localSave.Lock()
	defer p.localSave.Unlock()
	return p.save(ctx, ModeImmediate, persist)
}

// Debounced (re)arms the local window; persist replaces any earlier pending save
func (p *Policy) Debounced(persist PersistFunc) {
	p.mu.Lock()
	p.pendingLocal = persist
	p.mu.Unlock()
	p.local.Trigger(p.fireLocal)
}

// DebouncedJournal (re)arms the journal window
func (p *Policy) DebouncedJournal(persist PersistFunc) {
	p.mu.Lock()
	p.pendingJournal = persist
	p.mu.Unlock()
	p.journal.Trigger(p.fireJournal)
}

// Pending reports whether a journey or journal save is waiting
func (p *Policy) Pending() bool {
	return p.local.Pending() || p.journal.Pending()
}

// Flush runs any pending journey save now. A debounced save that already
// started is waited for.
func (p *Policy) Flush(ctx context.Context) error {
	return p.flush(ctx, p.local, &p.localSave, &p.pendingLocal)
}

// FlushJournal runs any pending journal save now, like Flush
func (p *Policy) FlushJournal(ctx context.Context) error {
	return p.flush(ctx, p.journal, &p.journalSave, &p.pendingJournal)
}

func (p *Policy) flush(ctx context.Context, d *scheduler.Debouncer, running *sync.Mutex, slot *PersistFunc) error {
	pending := d.Cancel()
	running.Lock()
	defer running.Unlock()
	if !pending {
		return nil
	}
	persist := p.take(slot)
	if persist == nil {
		return nil
	}
	return p.save(ctx, ModeFlush, persist)
}

// FlushAll flushes the journal window, then the journey window
func (p *Policy) FlushAll(ctx context.Context) error {
	if err := p.FlushJournal(ctx); err != nil {
		return err
	}
	return p.Flush(ctx)
}

// Cancel drops pending saves without writing them
func (p *Policy) Cancel() {
	p.local.Cancel()
	p.journal.Cancel()
	p.mu.Lock()
	p.pendingLocal, p.pendingJournal = nil, nil
	p.mu.Unlock()
}

func (p *Policy) fireLocal() {
	p.fire(&p.localSave, &p.pendingLocal)
}

func (p *Policy) fireJournal() {
	p.fire(&p.journalSave, &p.pendingJournal)
}

func (p *Policy) fire(running *sync.Mutex, slot *PersistFunc) {
	running.Lock()
	defer running.Unlock()
	if persist := p.take(slot); persist != nil {
		p.report(p.save(p.ctx, ModeDebounced, persist))
	}
}

func (p *Policy) take(slot *PersistFunc) PersistFunc {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn := *slot
	*slot = nil
	return fn
}

func (p *Policy) save(ctx context.Context, mode string, persist PersistFunc) error {
	start := p.clock()
	ref, err := persist(ctx)
	p.metrics.SaveCompleted(mode, p.clock().Sub(start), err)
	if err != nil {
		p.logger.Error("local save failed", zap.String("mode", mode), zap.Error(err))
		return err
	}
	if ref.IsZero() {
		return nil
	}
	p.logger.Debug("saved locally", zap.String("mode", mode), zap.Stringer("ref", ref))
	if p.remote != nil {
		p.remote.Schedule(ref)
	}
	return nil
}

func (p *Policy) report(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
