package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUniqueAndSorted(t *testing.T) {
	prev := NewID()
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.Len(t, id, 26)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestAnonymousUserID(t *testing.T) {
	id := NewAnonymousUserID()
	assert.True(t, IsAnonymousUserID(id))
	assert.False(t, IsAnonymousUserID("user-1"))
}

func TestNextUpdatedAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Second), NextUpdatedAt(base, base.Add(time.Second)))
	assert.Equal(t, base.Add(time.Nanosecond), NextUpdatedAt(base, base))
	assert.Equal(t, base.Add(time.Nanosecond), NextUpdatedAt(base, base.Add(-time.Hour)))
	assert.Equal(t, base, NextUpdatedAt(time.Time{}, base))
}

func TestSyncState(t *testing.T) {
	assert.True(t, Dirty().IsDirty)
	assert.True(t, Dirty().NeverSynced())

	s := Synced(time.Now())
	assert.False(t, s.IsDirty)
	assert.False(t, s.NeverSynced())
}

func TestValidationErrors(t *testing.T) {
	errs := NewValidationErrors()
	assert.NoError(t, errs.OrNil())

	errs.Add("name", "is required")
	errs.Add("name", "is too short")
	errs.Add("id", "is required")

	err := errs.OrNil()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name: is required")
	assert.Equal(t, []string{"id", "name"}, errs.Fields())
	assert.Equal(t, []string{"is required", "is too short"}, errs.ToMap()["name"])

	got, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Same(t, errs, got)
}

type taggedItem struct {
	Name string `json:"name" validate:"required,max=3"`
}

type taggedDoc struct {
	Kind  string       `json:"kind" validate:"oneof=a b"`
	Items []taggedItem `json:"items" validate:"max=2,dive"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(taggedDoc{Kind: "a", Items: []taggedItem{{Name: "héé"}}}))

	err := ValidateStruct(taggedDoc{Kind: "c", Items: []taggedItem{{Name: ""}, {Name: "long"}}})
	errs, ok := AsValidationErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	assert.Equal(t, map[string][]string{
		"kind":          {"must be one of: a, b"},
		"items[0].name": {"is required"},
		"items[1].name": {"must be at most 3 characters"},
	}, errs.ToMap())

	err = ValidateStruct(taggedDoc{Kind: "b", Items: make([]taggedItem, 3)})
	errs, ok = AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{"must have at most 2 items"}, errs.ToMap()["items"])

	merged := NewValidationErrors()
	merged.Merge(errs)
	merged.Merge(nil)
	assert.Equal(t, errs.Fields(), merged.Fields())
}

func TestRef(t *testing.T) {
	r := Ref{Kind: KindJourney, ID: "x"}
	assert.Equal(t, "journey/x", r.String())
	assert.False(t, r.IsZero())
	assert.True(t, Ref{}.IsZero())
	assert.True(t, KindJournal.IsValid())
	assert.False(t, Kind("pbi").IsValid())
}
