package model

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// AnonymousUserPrefix marks identities issued to sessions that never signed in
const AnonymousUserPrefix = "anon-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a new entity ID using ULID
// Format: ULID (e.g., 01JB6X8Y2K9FQR4T3VWHGP5M2C)
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewAnonymousUserID returns a fresh identity for an unauthenticated session
func NewAnonymousUserID() string {
	return AnonymousUserPrefix + uuid.NewString()
}

// IsAnonymousUserID reports whether id was issued by NewAnonymousUserID
func IsAnonymousUserID(id string) bool {
	return strings.HasPrefix(id, AnonymousUserPrefix)
}
