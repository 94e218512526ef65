package model

import "time"

// SyncState carries the local-only sync control fields of a persisted entity.
// It is never part of the server representation.
type SyncState struct {
	// IsDirty is true while the entity has local changes not yet confirmed by the server
	IsDirty bool `json:"isDirty" yaml:"isDirty"`
	// SyncedAt is the time of the last confirmed push; nil means the entity
	// must be created server-side rather than updated
	SyncedAt *time.Time `json:"syncedAt,omitempty" yaml:"syncedAt,omitempty"`
}

// NeverSynced reports whether the entity has never been pushed
func (s SyncState) NeverSynced() bool {
	return s.SyncedAt == nil
}

// Dirty returns the state of a freshly written, never synced entity
func Dirty() SyncState {
	return SyncState{IsDirty: true}
}

// Synced returns a clean state stamped at t
func Synced(t time.Time) SyncState {
	t = t.UTC()
	return SyncState{IsDirty: false, SyncedAt: &t}
}

// Timestamp normalizes t for storage and comparison: UTC, no monotonic reading
func Timestamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// NextUpdatedAt returns a write stamp strictly after prev.
// Two writes to the same entity never share an updatedAt, so a version
// captured before a push identifies exactly one state.
func NextUpdatedAt(prev, now time.Time) time.Time {
	now = Timestamp(now)
	if !prev.IsZero() && !now.After(prev) {
		return Timestamp(prev.Add(time.Nanosecond))
	}
	return now
}
