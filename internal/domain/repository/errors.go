package repository

import "errors"

// ErrNotFound is returned when an entity is absent from the local store
var ErrNotFound = errors.New("not found")
