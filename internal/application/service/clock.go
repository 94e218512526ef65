package service

import (
	"errors"
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// ErrAlreadyExists is returned when creating an entity whose ID is taken
var ErrAlreadyExists = errors.New("entity already exists")

// Clock supplies the current time. scheduler.Scheduler satisfies it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now
func (SystemClock) Now() time.Time { return time.Now() }

// Tracked pairs an entity's server representation with its local sync state
type Tracked[T model.Entity] struct {
	Entity T
	State  model.SyncState
}
