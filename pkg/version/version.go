// Package version exposes build metadata for the udpreplay binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in banners and log fields.
const Name = "udpreplay"

// Build information, set with -ldflags "-X github.com/zsiec/udpreplay/pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info contains version information.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the version information. When the binary was built without
// ldflags the VCS revision recorded by the Go toolchain is used instead.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.GitCommit == "unknown" {
		if rev, ok := vcsRevision(); ok {
			info.GitCommit = rev
		}
	}
	return info
}

func vcsRevision() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12], true
			}
			return s.Value, true
		}
	}
	return "", false
}

// String returns the full version line printed by -version.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s, platform: %s)",
		i.Name, i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns "<name> <version>".
func (i Info) Short() string {
	return fmt.Sprintf("%s %s", i.Name, i.Version)
}
