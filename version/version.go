package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// set via ldflags
//
//nolint:gochecknoglobals // build info
var (
	Version     = "dev"
	GitCommit   = "none"
	BuildDate   = "unknown"
	FullVersion = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
)

// Canonical returns the semantic version of the build or "v0.0.0" for
// development builds.
func Canonical() string {
	return canonical(Version)
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "v0.0.0"
	}
	return semver.Canonical(v)
}
