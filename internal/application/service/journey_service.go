package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// JourneyService is the only writer of journeys in the local store.
// Every content write stamps a fresh updatedAt and marks the record dirty.
type JourneyService struct {
	journeys repository.JourneyRepository
	journals repository.JournalRepository
	tx       output.TransactionManager
	clock    Clock
	logger   *zap.Logger
}

// NewJourneyService creates a new journey service
func NewJourneyService(
	journeys repository.JourneyRepository,
	journals repository.JournalRepository,
	tx output.TransactionManager,
	clock Clock,
	logger *zap.Logger,
) *JourneyService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JourneyService{
		journeys: journeys,
		journals: journals,
		tx:       tx,
		clock:    clock,
		logger:   logger,
	}
}

// Kind returns model.KindJourney
func (s *JourneyService) Kind() model.Kind { return model.KindJourney }

// Create stores a new journey. A missing ID or timestamp is filled in;
// the record starts dirty and never synced.
func (s *JourneyService) Create(ctx context.Context, j journey.Journey) (*journey.Record, error) {
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
	j = prepare(j)

	if err := journey.Validate(j); err != nil {
		return nil, err
	}

	rec := journey.NewRecord(j, model.Dirty())
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.journeys.Get(txCtx, j.ID); err == nil {
			return fmt.Errorf("journey %s: %w", j.ID, ErrAlreadyExists)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := s.checkJournalRefs(txCtx, j); err != nil {
			return err
		}
		return s.journeys.Put(txCtx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("create journey failed: %w", err)
	}

	s.logger.Debug("journey created", zap.String("id", j.ID), zap.Int("nodes", len(j.Nodes)))
	return rec, nil
}

// Get returns the journey record, or repository.ErrNotFound
func (s *JourneyService) Get(ctx context.Context, id string) (*journey.Record, error) {
	return s.journeys.Get(ctx, id)
}

// List returns every local journey, most recently updated first
func (s *JourneyService) List(ctx context.Context) ([]*journey.Record, error) {
	return s.journeys.GetAll(ctx)
}

// Update merges patch into the stored journey. A patch whose UpdatedAt is
// older than the record's is absorbed: stored content wins, but the record is
// still re-stamped and marked dirty. Returns repository.ErrNotFound when absent.
func (s *JourneyService) Update(ctx context.Context, id string, patch journey.Patch) (*journey.Record, error) {
	var out *journey.Record
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		rec, err := s.journeys.Get(txCtx, id)
		if err != nil {
			return err
		}

		next := rec.Clone()
		if patch.StaleFor(rec.UpdatedAt) {
			s.logger.Debug("stale journey patch absorbed",
				zap.String("id", id),
				zap.Time("patch_updated_at", *patch.UpdatedAt),
				zap.Time("stored_updated_at", rec.UpdatedAt))
		} else {
			patch.ApplyTo(&next.Journey)
			next.Journey = prepare(next.Journey)
			if err := journey.Validate(next.Journey); err != nil {
				return err
			}
			if err := s.checkJournalRefs(txCtx, next.Journey); err != nil {
				return err
			}
		}

		next.UpdatedAt = model.NextUpdatedAt(rec.UpdatedAt, s.clock.Now())
		next.IsDirty = true
		if err := s.journeys.Put(txCtx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update journey failed: %w", err)
	}
	return out, nil
}

// Delete removes the journey permanently. No tombstone is kept.
func (s *JourneyService) Delete(ctx context.Context, id string) error {
	if err := s.journeys.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete journey failed: %w", err)
	}
	return nil
}

// MarkSynced clears the dirty flag and stamps syncedAt without touching content
func (s *JourneyService) MarkSynced(ctx context.Context, id string) error {
	return s.setState(ctx, id, func(r *journey.Record, now time.Time) {
		r.SyncState = model.Synced(now)
	})
}

// MarkSyncedVersion records a confirmed push of version. The record is only
// marked clean if it was not rewritten after version was read; syncedAt is
// stamped either way. It reports whether the record is now clean.
func (s *JourneyService) MarkSyncedVersion(ctx context.Context, id string, version time.Time) (bool, error) {
	clean := false
	err := s.setState(ctx, id, func(r *journey.Record, now time.Time) {
		clean = r.UpdatedAt.Equal(version)
		r.SyncState = model.Synced(now)
		r.IsDirty = !clean
	})
	return clean, err
}

// MarkUnsynced sets the dirty flag again after a failed push
func (s *JourneyService) MarkUnsynced(ctx context.Context, id string) error {
	return s.setState(ctx, id, func(r *journey.Record, _ time.Time) {
		r.IsDirty = true
	})
}

func (s *JourneyService) setState(ctx context.Context, id string, fn func(r *journey.Record, now time.Time)) error {
	return s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		rec, err := s.journeys.Get(txCtx, id)
		if err != nil {
			return err
		}
		fn(rec, model.Timestamp(s.clock.Now()))
		return s.journeys.Put(txCtx, rec)
	})
}

// ApplyRemote stores the server's copy of a journey as a clean, synced record
func (s *JourneyService) ApplyRemote(ctx context.Context, remote journey.Journey) error {
	remote.CreatedAt = model.Timestamp(remote.CreatedAt)
	remote.UpdatedAt = model.Timestamp(remote.UpdatedAt)
	remote = prepare(remote)
	if err := journey.Validate(remote); err != nil {
		return fmt.Errorf("apply remote journey %s failed: %w", remote.ID, err)
	}
	rec := journey.NewRecord(remote, model.Synced(s.clock.Now()))
	if err := s.journeys.Put(ctx, rec); err != nil {
		return fmt.Errorf("apply remote journey %s failed: %w", remote.ID, err)
	}
	return nil
}

// ReassignOwner moves every journey owned by from, or by nobody, to to.
// Content, updatedAt and sync state are left as they are.
func (s *JourneyService) ReassignOwner(ctx context.Context, from, to string) (int, error) {
	n := 0
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		all, err := s.journeys.GetAll(txCtx)
		if err != nil {
			return err
		}
		for _, rec := range all {
			if rec.OwnerID != from && rec.OwnerID != "" {
				continue
			}
			if rec.OwnerID == to {
				continue
			}
			rec.OwnerID = to
			if err := s.journeys.Put(txCtx, rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reassign journey owner failed: %w", err)
	}
	return n, nil
}

// Duplicate copies a journey under fresh IDs. Referenced journals are
// copied too, so the copy never shares a journal with its source.
func (s *JourneyService) Duplicate(ctx context.Context, id, name string) (*journey.Record, error) {
	var out *journey.Record
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		src, err := s.journeys.Get(txCtx, id)
		if err != nil {
			return err
		}
		now := model.Timestamp(s.clock.Now())

		dst, _ := journey.Duplicate(src.Journey)
		mapping := make(map[string]string)
		for _, ref := range src.JournalRefs() {
			jr, err := s.journals.Get(txCtx, ref)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			cp := jr.Journal
			cp.ID = model.NewID()
			cp.CreatedAt, cp.UpdatedAt = now, now
			if err := s.journals.Put(txCtx, journalRecord(cp)); err != nil {
				return err
			}
			mapping[ref] = cp.ID
		}
		journey.RemapJournals(&dst, mapping)

		if name == "" {
			name = src.Name + " (copy)"
		}
		dst.Name = name
		dst.CreatedAt, dst.UpdatedAt = now, now
		dst = prepare(dst)
		if err := journey.Validate(dst); err != nil {
			return err
		}
		out = journey.NewRecord(dst, model.Dirty())
		return s.journeys.Put(txCtx, out)
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate journey failed: %w", err)
	}
	return out, nil
}

// Tracked returns the journey with its sync state
func (s *JourneyService) Tracked(ctx context.Context, id string) (Tracked[journey.Journey], error) {
	rec, err := s.journeys.Get(ctx, id)
	if err != nil {
		return Tracked[journey.Journey]{}, err
	}
	return trackJourney(rec), nil
}

// AllTracked returns every local journey with its sync state
func (s *JourneyService) AllTracked(ctx context.Context) ([]Tracked[journey.Journey], error) {
	recs, err := s.journeys.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return trackJourneys(recs), nil
}

// PendingTracked returns journeys that are dirty or were never pushed
func (s *JourneyService) PendingTracked(ctx context.Context) ([]Tracked[journey.Journey], error) {
	dirty, err := s.journeys.GetDirty(ctx)
	if err != nil {
		return nil, err
	}
	unsynced, err := s.journeys.GetUnsynced(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(dirty))
	out := trackJourneys(dirty)
	for _, t := range out {
		seen[t.Entity.ID] = struct{}{}
	}
	for _, rec := range unsynced {
		if _, ok := seen[rec.ID]; !ok {
			out = append(out, trackJourney(rec))
		}
	}
	return out, nil
}

// checkJournalRefs verifies that every referenced journal exists locally and
// is not attached to a different journey.
// CheckJournalRefs reports, without writing, whether the journal references
// of j would be accepted by Create or Update
func (s *JourneyService) CheckJournalRefs(ctx context.Context, j journey.Journey) error {
	return s.checkJournalRefs(ctx, j)
}

func (s *JourneyService) checkJournalRefs(ctx context.Context, j journey.Journey) error {
	errs := model.NewValidationErrors()
	checked := make(map[string]string)

	check := func(field, journalID string) error {
		if journalID == "" {
			return nil
		}
		if msg, ok := checked[journalID]; ok {
			if msg != "" {
				errs.Add(field, "%s", msg)
			}
			return nil
		}
		msg, err := s.journalRefProblem(ctx, j.ID, journalID)
		if err != nil {
			return err
		}
		checked[journalID] = msg
		if msg != "" {
			errs.Add(field, "%s", msg)
		}
		return nil
	}

	if err := check("journalId", j.JournalID); err != nil {
		return err
	}
	for i, n := range j.Nodes {
		if err := check(fmt.Sprintf("nodes[%d].journalId", i), n.JournalID); err != nil {
			return err
		}
	}
	return errs.OrNil()
}

func (s *JourneyService) journalRefProblem(ctx context.Context, journeyID, journalID string) (string, error) {
	if _, err := s.journals.Get(ctx, journalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("journal %s does not exist", journalID), nil
		}
		return "", err
	}
	users, err := s.journeys.FindByJournalID(ctx, journalID)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID != journeyID {
			return fmt.Sprintf("journal %s is attached to journey %s", journalID, u.ID), nil
		}
	}
	return "", nil
}

// prepare strips placeholders and fills defaults
func prepare(j journey.Journey) journey.Journey {
	g := journey.StripPlaceholders(j.Graph())
	j.Nodes, j.Edges = g.Nodes, g.Edges
	journey.Normalize(&j)
	return j
}

func trackJourney(rec *journey.Record) Tracked[journey.Journey] {
	return Tracked[journey.Journey]{Entity: rec.Journey, State: rec.SyncState}
}

func trackJourneys(recs []*journey.Record) []Tracked[journey.Journey] {
	out := make([]Tracked[journey.Journey], 0, len(recs))
	for _, rec := range recs {
		out = append(out, trackJourney(rec))
	}
	return out
}
