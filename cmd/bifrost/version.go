package main

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// Version returns the module version when built with `go install ...@version`,
// and "devel-<VERSION>[+<revision>]" otherwise.
func Version() string {
	base := strings.TrimSpace(embeddedVersion)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return base
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return "devel-" + base + "+" + s.Value[:7]
		}
	}
	return "devel-" + base
}
