package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/journeygrid/journeygrid/internal/application/autosave"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
)

// JournalStore is the slice of the journal mutation API the editor writes through
type JournalStore interface {
	Get(ctx context.Context, id string) (*journal.Record, error)
	Update(ctx context.Context, id string, patch journal.Patch) (*journal.Record, error)
}

// JournalSaver is the journal window of the autosave policy
type JournalSaver interface {
	DebouncedJournal(persist autosave.PersistFunc)
	FlushJournal(ctx context.Context) error
}

// JournalEditor holds one open journal. Its saves use the journal window,
// so journal typing never resets or waits on the journey's window.
type JournalEditor struct {
	store JournalStore
	saver JournalSaver
	clock func() time.Time

	mu       sync.Mutex
	current  *journal.Journal
	base     time.Time
	lastEdit time.Time
	unsaved  bool
}

// NewJournalEditor creates a journal editor with nothing open
func NewJournalEditor(store JournalStore, saver JournalSaver, clock func() time.Time) *JournalEditor {
	if clock == nil {
		clock = time.Now
	}
	return &JournalEditor{store: store, saver: saver, clock: clock}
}

// Open flushes the previous journal and loads id
func (e *JournalEditor) Open(ctx context.Context, id string) (journal.Journal, error) {
	if err := e.saver.FlushJournal(ctx); err != nil {
		return journal.Journal{}, fmt.Errorf("save before open failed: %w", err)
	}
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return journal.Journal{}, fmt.Errorf("open journal %s failed: %w", id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	j := rec.Journal
	e.current = &j
	e.base = rec.UpdatedAt
	e.lastEdit = time.Time{}
	e.unsaved = false
	return j, nil
}

// Current returns the open journal and whether one is open
func (e *JournalEditor) Current() (journal.Journal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return journal.Journal{}, false
	}
	return *e.current, true
}

// Unsaved reports whether edits are waiting for the journal window
func (e *JournalEditor) Unsaved() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unsaved
}

// SetTitle changes the title
func (e *JournalEditor) SetTitle(title string) error {
	return e.edit(func(j *journal.Journal) { j.Title = title })
}

// SetContent replaces the serialized content
func (e *JournalEditor) SetContent(content string) error {
	return e.edit(func(j *journal.Journal) { j.Content = content })
}

// Flush saves pending edits now
func (e *JournalEditor) Flush(ctx context.Context) error {
	return e.saver.FlushJournal(ctx)
}

func (e *JournalEditor) edit(fn func(j *journal.Journal)) error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return fmt.Errorf("no journal is open")
	}
	fn(e.current)
	e.unsaved = true
	e.lastEdit = model.Timestamp(e.clock())
	e.mu.Unlock()

	e.saver.DebouncedJournal(e.persist)
	return nil
}

func (e *JournalEditor) persist(ctx context.Context) (model.Ref, error) {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return model.Ref{}, nil
	}
	snapshot := *e.current
	stamp := e.lastEdit
	if e.base.After(stamp) {
		stamp = e.base
	}
	e.mu.Unlock()

	rec, err := e.store.Update(ctx, snapshot.ID, journal.Patch{
		Title:     &snapshot.Title,
		Content:   &snapshot.Content,
		UpdatedAt: &stamp,
	})
	if err != nil {
		return model.Ref{}, err
	}

	e.mu.Lock()
	if e.current != nil && e.current.ID == snapshot.ID {
		e.base = rec.UpdatedAt
		if *e.current == snapshot {
			e.current.Title, e.current.Content = rec.Title, rec.Content
			e.current.UpdatedAt = rec.UpdatedAt
			e.unsaved = false
		}
	}
	e.mu.Unlock()
	return model.Ref{Kind: model.KindJournal, ID: snapshot.ID}, nil
}
