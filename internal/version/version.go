// Package version describes the running nextvm build.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// buildVersion is set via -ldflags "-X pkt.systems/nextvm/internal/version.buildVersion=...".
var buildVersion = ""

const (
	defaultModule  = "pkt.systems/nextvm"
	unknownVersion = "v0.0.0-unknown"
)

// Info describes the running build.
type Info struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Build returns the build description served by the version command and
// the HTTP API. The linker-provided version wins over the module version,
// which wins over a pseudo version derived from VCS stamping.
func Build() Info {
	info := Info{Module: defaultModule, Version: unknownVersion, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromBuildInfo(bi, info)
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		info.Version = v
	}
	return info
}

// Current returns the version string of the running binary.
func Current() string {
	return Build().Version
}

// Module returns the main module path.
func Module() string {
	return Build().Module
}

// String formats the build as "<module> <version> (<go version>)".
func (i Info) String() string {
	v := i.Version
	if i.Modified {
		v += " modified"
	}
	return i.Module + " " + v + " (" + i.GoVersion + ")"
}

func fromBuildInfo(bi *debug.BuildInfo, info Info) Info {
	if bi == nil {
		return info
	}
	if path := strings.TrimSpace(bi.Main.Path); path != "" {
		info.Module = path
	}
	var stamped string
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.time":
			stamped = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	if v := strings.TrimSuffix(strings.TrimSpace(bi.Main.Version), "+dirty"); v != "" && v != "(devel)" {
		info.Version = v
		return info
	}
	at, err := time.Parse(time.RFC3339, stamped)
	if err != nil || info.Revision == "" {
		return info
	}
	rev := info.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	info.Version = "v0.0.0-" + at.UTC().Format("20060102150405") + "-" + rev
	return info
}
