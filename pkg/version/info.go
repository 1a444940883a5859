// Package version reports what binary is running, for the version command,
// the /version endpoint and the startup log line.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"
)

// Release builds stamp these with
//
//	-ldflags "-X github.com/nimburion/itemservice/pkg/version.AppVersion=v1.2.3"
//
// GitCommit and BuildTime fall back to the toolchain's VCS stamp when unset.
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

var readBuildInfo = debug.ReadBuildInfo

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	// Dirty is set when the VCS stamp reports uncommitted changes.
	Dirty bool `json:"dirty,omitempty"`
}

// Current describes the running binary as service.
func Current(service string) Info {
	info := Info{
		Service:   or(service, Unknown),
		Version:   or(AppVersion, DevelopmentVersion),
		Commit:    or(GitCommit, Unknown),
		BuildTime: or(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
	if bi, ok := readBuildInfo(); ok {
		info.stamp(bi.Settings)
	}
	return info
}

func (i *Info) stamp(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = strings.TrimSpace(s.Value)
	}
	if i.Commit == Unknown {
		i.Commit = or(vcs["vcs.revision"], Unknown)
	}
	if i.BuildTime == Unknown {
		i.BuildTime = or(vcs["vcs.time"], Unknown)
	}
	i.Dirty = vcs["vcs.modified"] == "true"
}

// Fields is Info as logger key/value pairs.
func (i Info) Fields() []any {
	return []any{
		"service", i.Service,
		"version", i.Version,
		"commit", i.Commit,
		"build_time", i.BuildTime,
		"go_version", i.GoVersion,
	}
}

func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s %s (%s, built %s, %s)", i.Service, i.Version, commit, i.BuildTime, i.GoVersion)
}

func or(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
