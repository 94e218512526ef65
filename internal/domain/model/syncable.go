package model

import "time"

// Entity is the server representation of a syncable record
type Entity interface {
	EntityID() string
	Owner() string
	LastUpdated() time.Time
}

// Kind names a syncable entity kind
type Kind string

const (
	KindJourney Kind = "journey"
	KindJournal Kind = "journal"
)

// String returns the string representation
func (k Kind) String() string {
	return string(k)
}

// IsValid validates the kind
func (k Kind) IsValid() bool {
	switch k {
	case KindJourney, KindJournal:
		return true
	default:
		return false
	}
}

// Ref addresses one entity of a given kind
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// String returns "kind/id"
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.ID
}

// IsZero reports whether r addresses nothing
func (r Ref) IsZero() bool {
	return r.ID == ""
}
