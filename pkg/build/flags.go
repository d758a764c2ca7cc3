// SPDX-License-Identifier: MIT
//
// Package build exposes the name, timestamp, commit and version embedded with
// -ldflags, e.g.
//
//	go build -ldflags "-X notescope/pkg/build.buildVersion=v0.3.0 ..."
//
// When the flags are missing the module build info recorded by the Go
// toolchain is used instead.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Info describes one build of the binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info for `notescope --version`.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:    "notescope",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "devel",
	}
)

// readBuildInfo is swapped out by tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags variables into the build info. Every missing
// flag is reported in the returned error; the fields that are missing are
// then filled from the toolchain's build info where it has them, so the
// result of Current is usable even when Initialize fails.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if len(errs) > 0 {
		fillFromModule(buildFlags)
	}
	return errors.Join(errs...)
}

func fillFromModule(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if buildVersion == "" && bi.Main.Version != "" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if buildCommit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if buildTime == "" {
				info.Time = s.Value
			}
		}
	}
}

// Current returns a copy of the build info.
func Current() Info {
	return *buildFlags
}
