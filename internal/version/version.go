// Package version reports build information for the sweeptrace tools
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set via -ldflags "-X sweeptrace/internal/version.Version=..."
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the build information of the running binary
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// Info returns the multi-line text printed by --version
func (b BuildInfo) Info(appName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s", appName, b.Version)
	if b.GitCommit != "unknown" && b.GitCommit != "" {
		fmt.Fprintf(&sb, " (commit %s)", shortCommit(b.GitCommit))
	}
	if b.BuildDate != "unknown" && b.BuildDate != "" {
		fmt.Fprintf(&sb, "\nBuilt: %s", b.BuildDate)
	}
	fmt.Fprintf(&sb, "\nGo: %s", b.GoVersion)
	fmt.Fprintf(&sb, "\nPlatform: %s", b.Platform)
	return sb.String()
}

// Short returns the version with an abbreviated commit, e.g. 0.3.0-1a2b3c4
func (b BuildInfo) Short() string {
	if b.GitCommit != "unknown" && len(b.GitCommit) > 7 {
		return fmt.Sprintf("%s-%s", b.Version, shortCommit(b.GitCommit))
	}
	return b.Version
}
