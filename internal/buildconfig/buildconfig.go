// Package buildconfig exposes values stamped into the storybrain binary at
// link time, e.g.
//
//	go build -ldflags "-X github.com/Harshitk-cp/storybrain/internal/buildconfig.version=v0.3.0 \
//	  -X github.com/Harshitk-cp/storybrain/internal/buildconfig.commit=$(git rev-parse --short HEAD) \
//	  -X github.com/Harshitk-cp/storybrain/internal/buildconfig.builtAt=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildconfig

import (
	"fmt"
	"runtime"
)

var (
	version = "dev"
	commit  = "unknown"
	builtAt = ""
)

// Info describes the running server build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at,omitempty"`
	GoVersion string `json:"go_version"`
}

func Current() Info {
	return Info{
		Version:   version,
		Commit:    commit,
		BuiltAt:   builtAt,
		GoVersion: runtime.Version(),
	}
}

// String renders the build for the startup log, e.g.
// "storybrain v0.3.0 (a1b2c3d, built 2026-03-01T09:00:00Z)".
func (i Info) String() string {
	if i.BuiltAt == "" {
		return fmt.Sprintf("storybrain %s (%s)", i.Version, i.Commit)
	}
	return fmt.Sprintf("storybrain %s (%s, built %s)", i.Version, i.Commit, i.BuiltAt)
}

// Dev reports whether the binary was built without version stamping.
func (i Info) Dev() bool {
	return i.Version == "dev"
}
