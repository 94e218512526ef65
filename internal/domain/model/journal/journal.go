package journal

import (
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// DefaultTitle is given to journals created without one
const DefaultTitle = "Untitled journal"

// MaxTitleLength bounds journal titles
const MaxTitleLength = 200

// MaxContentLength bounds the serialized markup of a journal
const MaxContentLength = 1 << 20

// Journal is free-form rich content owned by one user
type Journal struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	Title     string    `json:"title" yaml:"title" validate:"required,max=200"`
	Content   string    `json:"content" yaml:"content"`
	OwnerID   string    `json:"ownerId" yaml:"ownerId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// EntityID implements model.Entity
func (j Journal) EntityID() string { return j.ID }

// Owner implements model.Entity
func (j Journal) Owner() string { return j.OwnerID }

// LastUpdated implements model.Entity
func (j Journal) LastUpdated() time.Time { return j.UpdatedAt }

// Record is a journal as held by the local store
type Record struct {
	Journal         `yaml:",inline"`
	model.SyncState `yaml:",inline"`
}

// NewRecord wraps j with the given sync state
func NewRecord(j Journal, state model.SyncState) *Record {
	return &Record{Journal: j, SyncState: state}
}

// Clone returns a copy of the record
func (r *Record) Clone() *Record {
	out := &Record{Journal: r.Journal, SyncState: r.SyncState}
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		out.SyncedAt = &t
	}
	return out
}

// Patch is a partial update of a journal. Nil fields are left untouched.
type Patch struct {
	Title     *string    `json:"title,omitempty"`
	Content   *string    `json:"content,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// IsEmpty reports whether the patch changes no field
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// StaleFor reports whether the patch was made before the record's last write
func (p Patch) StaleFor(current time.Time) bool {
	return p.UpdatedAt != nil && p.UpdatedAt.Before(current)
}

// ApplyTo merges the patch into j
func (p Patch) ApplyTo(j *Journal) {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Content != nil {
		j.Content = *p.Content
	}
}

// Normalize fills defaults and canonicalizes the title in place
func Normalize(j *Journal) {
	j.Title = model.NormalizeText(j.Title)
	if j.Title == "" {
		j.Title = DefaultTitle
	}
}

// Validate checks a persistable journal. Content is bounded in bytes, which
// the tag rules cannot express.
func Validate(j Journal) error {
	errs := model.NewValidationErrors()
	if err := model.ValidateStruct(j); err != nil {
		tagErrs, ok := model.AsValidationErrors(err)
		if !ok {
			return err
		}
		errs.Merge(tagErrs)
	}
	if len(j.Content) > MaxContentLength {
		errs.Add("content", "must be at most %d bytes", MaxContentLength)
	}
	return errs.OrNil()
}
