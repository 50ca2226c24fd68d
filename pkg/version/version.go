// Package version carries the build information of the amanrdf binary.
package version

import (
	"fmt"
	"runtime"
)

// Version is injected with
// -ldflags "-X github.com/Aman-CERP/amanrdf/pkg/version.Version=$(VERSION)".
var Version = "dev"

// Set via ldflags alongside Version.
var (
	Commit = "unknown"
	// Date is the build time in RFC3339.
	Date = "unknown"
)

// BuildInfo is the JSON form of `amanrdf version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("amanrdf %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// Short returns just the version.
func Short() string {
	return Version
}

// UserAgent identifies remote backend requests.
func UserAgent() string {
	return "amanrdf/" + Version
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
