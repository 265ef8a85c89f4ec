package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestBuildPrefersLinkerVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if Build().GoVersion == "" {
		t.Fatalf("expected go version")
	}
}

func TestFromBuildInfoDerivesPseudoVersion(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "example.com/nv", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	info := fromBuildInfo(bi, Info{Module: defaultModule, Version: unknownVersion})
	if info.Version != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected pseudo version %q", info.Version)
	}
	if info.Module != "example.com/nv" || !info.Modified || info.Revision != "1234567890abcdef" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestFromBuildInfoUsesModuleVersion(t *testing.T) {
	bi := &debug.BuildInfo{Main: debug.Module{Path: defaultModule, Version: "v0.3.0+dirty"}}
	if got := fromBuildInfo(bi, Info{Version: unknownVersion}).Version; got != "v0.3.0" {
		t.Fatalf("expected module version without dirty suffix, got %q", got)
	}
	if got := fromBuildInfo(nil, Info{Version: unknownVersion}).Version; got != unknownVersion {
		t.Fatalf("expected fallback version, got %q", got)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Module: defaultModule, Version: "v9.9.9", GoVersion: "go1.25.2"}
	if got := info.String(); got != "pkt.systems/nextvm v9.9.9 (go1.25.2)" {
		t.Fatalf("unexpected string %q", got)
	}
	info.Modified = true
	if got := info.String(); got != "pkt.systems/nextvm v9.9.9 modified (go1.25.2)" {
		t.Fatalf("unexpected modified string %q", got)
	}
}
