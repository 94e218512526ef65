package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	Version = ""
	assert.Equal(t, "dev", GetVersion())
	Version = "v1.2.3"
	assert.Equal(t, "v1.2.3", GetVersion())
}

func TestDescribe(t *testing.T) {
	savedCommit, savedDate := Commit, BuildDate
	t.Cleanup(func() { Commit, BuildDate = savedCommit, savedDate })

	Commit, BuildDate = "", ""
	assert.Equal(t, "unknown", Describe())
	Commit = "abc123"
	assert.Equal(t, "commit abc123", Describe())
	BuildDate = "2026-01-02"
	assert.Equal(t, "commit abc123, built 2026-01-02", Describe())
}
