// Package buildinfo contains build-time information embedded via ldflags
package buildinfo

import "fmt"

// Set at build time, for example:
//
//	go build -ldflags "-X github.com/journeygrid/journeygrid/internal/buildinfo.Version=v1.0.0 \
//	  -X github.com/journeygrid/journeygrid/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// GetVersion returns the current version, with "dev" as default for development builds
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// Describe returns the commit and build date, or "unknown"
func Describe() string {
	switch {
	case Commit != "" && BuildDate != "":
		return fmt.Sprintf("commit %s, built %s", Commit, BuildDate)
	case Commit != "":
		return "commit " + Commit
	default:
		return "unknown"
	}
}
