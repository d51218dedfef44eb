// Package version holds build metadata for cronus binaries.
package version

import "fmt"

// Set by goreleaser ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("cronus %s (commit: %s, built: %s)", Version, Commit, Date)
}
