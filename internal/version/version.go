package version

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "0.1.0"
	Commit  = ""
)

// Resolve returns the release version, suffixed with the VCS revision when
// the binary was built from a commit other than the one stamped at release.
func Resolve() string {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	return resolveVersion(Version, Commit, settings)
}

func resolveVersion(base, releaseCommit string, settings []debug.BuildSetting) string {
	if base = strings.TrimPrefix(strings.TrimSpace(base), "v"); base == "" {
		base = "0.0.0"
	}

	var revision string
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision == "" {
		return base
	}
	if releaseCommit != "" && strings.HasPrefix(revision, releaseCommit) && !modified {
		return base
	}

	suffix := shortRevision(revision)
	if modified {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}

func shortRevision(revision string) string {
	if len(revision) > 7 {
		return revision[:7]
	}
	return revision
}
