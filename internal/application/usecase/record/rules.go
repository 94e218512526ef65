package record

import (
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// Rules adapts one entity kind to the generic record service
type Rules[T model.Entity] struct {
	Kind model.Kind

	// Prepare canonicalizes an incoming entity and validates it.
	// Validation failures are *model.ValidationErrors.
	Prepare func(entity T) (T, error)

	// Claim gives entity to owner and fills missing timestamps with now
	Claim func(entity T, owner string, now time.Time) T

	// Merge overwrites the content of current with incoming, keeping the
	// server-controlled identity, owner and creation time
	Merge func(current, incoming T, now time.Time) T

	// Public reports whether any authenticated caller may read entity. Nil means never.
	Public func(entity T) bool
}

// JourneyRules returns the rules for journeys
func JourneyRules() Rules[journey.Journey] {
	return Rules[journey.Journey]{
		Kind: model.KindJourney,
		Prepare: func(j journey.Journey) (journey.Journey, error) {
			j = j.Clone()
			g := journey.StripPlaceholders(j.Graph())
			j.Nodes, j.Edges = g.Nodes, g.Edges
			j.CreatedAt = model.Timestamp(j.CreatedAt)
			j.UpdatedAt = model.Timestamp(j.UpdatedAt)
			journey.Normalize(&j)
			return j, journey.Validate(j)
		},
		Claim: func(j journey.Journey, owner string, now time.Time) journey.Journey {
			j.OwnerID = owner
			j.CreatedAt, j.UpdatedAt = fill(j.CreatedAt, now), fill(j.UpdatedAt, now)
			return j
		},
		Merge: func(cur, in journey.Journey, now time.Time) journey.Journey {
			in.ID, in.OwnerID, in.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
			in.UpdatedAt = fill(in.UpdatedAt, now)
			return in
		},
		Public: func(j journey.Journey) bool {
			return j.Visibility == journey.VisibilityPublic
		},
	}
}

// JournalRules returns the rules for journals
func JournalRules() Rules[journal.Journal] {
	return Rules[journal.Journal]{
		Kind: model.KindJournal,
		Prepare: func(j journal.Journal) (journal.Journal, error) {
			j.CreatedAt = model.Timestamp(j.CreatedAt)
			j.UpdatedAt = model.Timestamp(j.UpdatedAt)
			journal.Normalize(&j)
			return j, journal.Validate(j)
		},
		Claim: func(j journal.Journal, owner string, now time.Time) journal.Journal {
			j.OwnerID = owner
			j.CreatedAt, j.UpdatedAt = fill(j.CreatedAt, now), fill(j.UpdatedAt, now)
			return j
		},
		Merge: func(cur, in journal.Journal, now time.Time) journal.Journal {
			in.ID, in.OwnerID, in.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt
			in.UpdatedAt = fill(in.UpdatedAt, now)
			return in
		},
	}
}

func fill(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
