// Package version reports which build of schemareg is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X .../version.Commit=... -X .../version.BuildTime=...".
var (
	Commit    = ""
	BuildTime = ""
)

// Info identifies a build.
type Info struct {
	Commit    string
	BuildTime string
	Modified  bool // built from a dirty worktree
}

// Current returns the ldflags values, falling back to the VCS stamp the Go
// toolchain embeds in module builds.
func Current() Info {
	info := Info{Commit: Commit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromSettings(info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func fromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String renders the build as "schemareg dev (commit: abc1234, built: ...)".
func String() string {
	return Current().String()
}

func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("schemareg dev (commit: %s, built: %s)", commit, i.BuildTime)
}
