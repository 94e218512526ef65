package syncengine

import "time"

// Status is the state of the sync status machine:
// idle -> syncing -> synced | error | offline, and synced -> idle after a quiet period.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// StatusEvent is delivered to subscribers on every transition
type StatusEvent struct {
	Status Status
	Err    error
	At     time.Time
}
