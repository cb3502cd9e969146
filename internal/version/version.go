// Package version exposes the build version of the cornucopia binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// These variables are set via ldflags by GoReleaser.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	// If the version wasn't set via ldflags, fall back to Go module info.
	// This covers "go install github.com/duarten/cornucopia/cmd/cornucopia@version".
	if Version != "dev" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) >= 7 {
				Commit = setting.Value[:7]
			} else {
				Commit = setting.Value
			}
		case "vcs.time":
			Date = setting.Value
		}
	}
}

// Info returns formatted version information.
func Info() string {
	return fmt.Sprintf("cornucopia %s (commit: %s, built: %s)", Version, Commit, Date)
}
