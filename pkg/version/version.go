// Package version reports build information for rulesim binaries.
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags.
var (
	Version   string
	Branch    string
	BuildUser string
	BuildDate string
)

var (
	Revision  = vcs().revision
	GoVersion = runtime.Version()
	GoOS      = runtime.GOOS
	GoArch    = runtime.GOARCH
)

// GetVersion returns [Version] when it was set at link time. Otherwise it
// returns the module version recorded by `go install`, or the VCS revision.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	if v := vcs().module; v != "" && v != "(devel)" {
		return v
	}

	return Revision
}

type buildInfo struct {
	module   string
	revision string
}

var vcs = sync.OnceValue(func() buildInfo {
	info := buildInfo{revision: "unknown"}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.module = bi.Main.Version

	var dirty bool

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.revision = s.Value[:min(len(s.Value), 7)]
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if dirty {
		info.revision += "-dirty"
	}

	return info
})
