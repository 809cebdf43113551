package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Fatalf("empty fields: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestFillFromBuildInfo(t *testing.T) {
	info := Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
	fillFromBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
		},
	})
	if info.Version != "v0.3.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Commit != "0123456789ab" {
		t.Errorf("Commit = %q", info.Commit)
	}
	if info.BuildTime != "2026-10-01T00:00:00Z" {
		t.Errorf("BuildTime = %q", info.BuildTime)
	}

	// ldflags values win.
	info = Info{Version: "v1.0.0", Commit: "abc", BuildTime: "now"}
	fillFromBuildInfo(&info, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "zzz"}},
	})
	if info.Version != "v1.0.0" || info.Commit != "abc" || info.BuildTime != "now" {
		t.Errorf("ldflags values overwritten: %+v", info)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, Get().Version) || !strings.Contains(s, "built at") {
		t.Errorf("String() = %q", s)
	}
}
