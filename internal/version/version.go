// Package version reports the brckctl build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/brck/brckctl/internal/version.Version=v0.4.0 \
//	                   -X github.com/brck/brckctl/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		info, _ := debug.ReadBuildInfo()
		fillFromBuildInfo(info)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fillFromBuildInfo uses the module version when installed with go install,
// and the VCS revision otherwise.
func fillFromBuildInfo(info *debug.BuildInfo) {
	if info == nil {
		return
	}
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	var revision, modified, stamp string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			stamp = s.Value
		}
	}
	if Commit == "" && revision != "" {
		Commit = revision[:min(len(revision), 7)]
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	if Version == "" && len(stamp) >= 10 {
		// vcs.time is RFC 3339; keep the date.
		Version = "dev-" + stamp[:10]
	}
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent on every API request.
func UserAgent() string {
	return fmt.Sprintf("brckctl/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
