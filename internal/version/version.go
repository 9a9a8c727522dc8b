// Package version provides build-time version information.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the current version.
func String() string {
	return Version
}

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("hackerterm %s (commit %s, built %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
