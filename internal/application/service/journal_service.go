package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// JournalService is the only writer of journals in the local store
type JournalService struct {
	journals repository.JournalRepository
	journeys repository.JourneyRepository
	tx       output.TransactionManager
	clock    Clock
	logger   *zap.Logger
}

// NewJournalService creates a new journal service
func NewJournalService(
	journals repository.JournalRepository,
	journeys repository.JourneyRepository,
	tx output.TransactionManager,
	clock Clock,
	logger *zap.Logger,
) *JournalService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{
		journals: journals,
		journeys: journeys,
		tx:       tx,
		clock:    clock,
		logger:   logger,
	}
}

// Kind returns model.KindJournal
func (s *JournalService) Kind() model.Kind { return model.KindJournal }

// Create stores a new journal, dirty and never synced
func (s *JournalService) Create(ctx context.Context, j journal.Journal) (*journal.Record, error) {
	now := model.Timestamp(s.clock.Now())
	if j.ID == "" {
		j.ID = model.NewID()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	j.CreatedAt = model.Timestamp(j.CreatedAt)
	j.UpdatedAt = model.Timestamp(j.UpdatedAt)
	journal.Normalize(&j)
	if err := journal.Validate(j); err != nil {
		return nil, err
	}

	rec := journalRecord(j)
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.journals.Get(txCtx, j.ID); err == nil {
			return fmt.Errorf("journal %s: %w", j.ID, ErrAlreadyExists)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.journals.Put(txCtx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("create journal failed: %w", err)
	}
	return rec, nil
}

// Get returns the journal record, or repository.ErrNotFound
func (s *JournalService) Get(ctx context.Context, id string) (*journal.Record, error) {
	return s.journals.Get(ctx, id)
}

// List returns every local journal, most recently updated first
func (s *JournalService) List(ctx context.Context) ([]*journal.Record, error) {
	return s.journals.GetAll(ctx)
}

// Update merges patch into the stored journal with the same
// last-writer-wins rule as JourneyService.Update.
func (s *JournalService) Update(ctx context.Context, id string, patch journal.Patch) (*journal.Record, error) {
	var out *journal.Record
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		rec, err := s.journals.Get(txCtx, id)
		if err != nil {
			return err
		}
		next := rec.Clone()
		if !patch.StaleFor(rec.UpdatedAt) {
			patch.ApplyTo(&next.Journal)
			journal.Normalize(&next.Journal)
			if err := journal.Validate(next.Journal); err != nil {
				return err
			}
		}
		next.UpdatedAt = model.NextUpdatedAt(rec.UpdatedAt, s.clock.Now())
		next.IsDirty = true
		if err := s.journals.Put(txCtx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update journal failed: %w", err)
	}
	return out, nil
}

// Delete removes the journal and detaches it from every journey and node
// that referenced it. Those journeys are re-stamped and marked dirty.
func (s *JournalService) Delete(ctx context.Context, id string) error {
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		users, err := s.journeys.FindByJournalID(txCtx, id)
		if err != nil {
			return err
		}
		for _, rec := range users {
			if !journey.ClearJournal(&rec.Journey, id) {
				continue
			}
			rec.UpdatedAt = model.NextUpdatedAt(rec.UpdatedAt, s.clock.Now())
			rec.IsDirty = true
			if err := s.journeys.Put(txCtx, rec); err != nil {
				return err
			}
			s.logger.Debug("journal detached", zap.String("journal_id", id), zap.String("journey_id", rec.ID))
		}
		return s.journals.Delete(txCtx, id)
	})
	if err != nil {
		return fmt.Errorf("delete journal failed: %w", err)
	}
	return nil
}

// MarkSynced clears the dirty flag and stamps syncedAt
func (s *JournalService) MarkSynced(ctx context.Context, id string) error {
	return s.setState(ctx, id, func(r *journal.Record, now time.Time) {
		r.SyncState = model.Synced(now)
	})
}

// MarkSyncedVersion marks the journal clean only if it still carries version
func (s *JournalService) MarkSyncedVersion(ctx context.Context, id string, version time.Time) (bool, error) {
	clean := false
	err := s.setState(ctx, id, func(r *journal.Record, now time.Time) {
		clean = r.UpdatedAt.Equal(version)
		r.SyncState = model.Synced(now)
		r.IsDirty = !clean
	})
	return clean, err
}

// MarkUnsynced sets the dirty flag again
func (s *JournalService) MarkUnsynced(ctx context.Context, id string) error {
	return s.setState(ctx, id, func(r *journal.Record, _ time.Time) {
		r.IsDirty = true
	})
}

func (s *JournalService) setState(ctx context.Context, id string, fn func(r *journal.Record, now time.Time)) error {
	return s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		rec, err := s.journals.Get(txCtx, id)
		if err != nil {
			return err
		}
		fn(rec, model.Timestamp(s.clock.Now()))
		return s.journals.Put(txCtx, rec)
	})
}

// ApplyRemote stores the server's copy of a journal as clean and synced
func (s *JournalService) ApplyRemote(ctx context.Context, remote journal.Journal) error {
	remote.CreatedAt = model.Timestamp(remote.CreatedAt)
	remote.UpdatedAt = model.Timestamp(remote.UpdatedAt)
	journal.Normalize(&remote)
	if err := journal.Validate(remote); err != nil {
		return fmt.Errorf("apply remote journal %s failed: %w", remote.ID, err)
	}
	if err := s.journals.Put(ctx, journal.NewRecord(remote, model.Synced(s.clock.Now()))); err != nil {
		return fmt.Errorf("apply remote journal %s failed: %w", remote.ID, err)
	}
	return nil
}

// ReassignOwner moves every journal owned by from, or by nobody, to to
func (s *JournalService) ReassignOwner(ctx context.Context, from, to string) (int, error) {
	n := 0
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		all, err := s.journals.GetAll(txCtx)
		if err != nil {
			return err
		}
		for _, rec := range all {
			if (rec.OwnerID != from && rec.OwnerID != "") || rec.OwnerID == to {
				continue
			}
			rec.OwnerID = to
			if err := s.journals.Put(txCtx, rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reassign journal owner failed: %w", err)
	}
	return n, nil
}

// Tracked returns the journal with its sync state
func (s *JournalService) Tracked(ctx context.Context, id string) (Tracked[journal.Journal], error) {
	rec, err := s.journals.Get(ctx, id)
	if err != nil {
		return Tracked[journal.Journal]{}, err
	}
	return Tracked[journal.Journal]{Entity: rec.Journal, State: rec.SyncState}, nil
}

// AllTracked returns every local journal with its sync state
func (s *JournalService) AllTracked(ctx context.Context) ([]Tracked[journal.Journal], error) {
	recs, err := s.journals.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return trackJournals(recs), nil
}

// PendingTracked returns journals that are dirty or were never pushed
func (s *JournalService) PendingTracked(ctx context.Context) ([]Tracked[journal.Journal], error) {
	dirty, err := s.journals.GetDirty(ctx)
	if err != nil {
		return nil, err
	}
	unsynced, err := s.journals.GetUnsynced(ctx)
	if err != nil {
		return nil, err
	}
	out := trackJournals(dirty)
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t.Entity.ID] = struct{}{}
	}
	for _, rec := range unsynced {
		if _, ok := seen[rec.ID]; !ok {
			out = append(out, Tracked[journal.Journal]{Entity: rec.Journal, State: rec.SyncState})
		}
	}
	return out, nil
}

func journalRecord(j journal.Journal) *journal.Record {
	return journal.NewRecord(j, model.Dirty())
}

func trackJournals(recs []*journal.Record) []Tracked[journal.Journal] {
	out := make([]Tracked[journal.Journal], 0, len(recs))
	for _, rec := range recs {
		out = append(out, Tracked[journal.Journal]{Entity: rec.Journal, State: rec.SyncState})
	}
	return out
}
