package output

import "time"

// Metrics receives engine and server measurements.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// SaveCompleted records one local persist by autosave mode ("immediate", "debounced", "flush")
	SaveCompleted(mode string, d time.Duration, err error)
	// SyncCompleted records one remote operation ("push", "sync_all", "delete", "migrate")
	SyncCompleted(op string, d time.Duration, err error)
	// SyncStatusChanged records a transition of the sync status machine
	SyncStatusChanged(status string)
	// RequestServed records one HTTP request handled by the server
	RequestServed(method, route string, status int, d time.Duration)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) SaveCompleted(string, time.Duration, error)        {}
func (NopMetrics) SyncCompleted(string, time.Duration, error)        {}
func (NopMetrics) SyncStatusChanged(string)                          {}
func (NopMetrics) RequestServed(string, string, int, time.Duration) {}
