// Package version provides build and version information for vodsearch.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of vodsearch.
// Set via ldflags at build time, or defaults to dev:
// -X vodsearch/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Info returns the build information as a struct.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Short returns just the version string.
func Short() string {
	return fmt.Sprintf("vodsearch version %s", Version)
}

// String returns a formatted multi-line version string with all build info.
func String() string {
	return fmt.Sprintf(
		"vodsearch version %s\n  git commit: %s\n  build time: %s\n  go version: %s\n  platform: %s/%s",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}
