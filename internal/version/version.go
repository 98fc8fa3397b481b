// Package version holds build-time version metadata, injected via -ldflags.
package version

import "fmt"

// These are set at build time via -ldflags "-X github.com/jmylchreest/iptvprobe/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info is the structured build metadata returned by GetInfo.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// GetInfo returns the current build metadata.
func GetInfo() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

// String returns a human-readable one-line version summary.
func String() string {
	return fmt.Sprintf("iptvprobe %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// Short returns just the version string, used as the Cobra root command's Version field.
func Short() string {
	return Version
}
