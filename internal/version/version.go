package version

import (
	"fmt"
	"runtime/debug"
)

// BuildVersion is set at build time via -ldflags; when unset the version
// is taken from module build info.
var BuildVersion = ""

// Version returns the version string for this build.
func Version() string {
	if BuildVersion != "" {
		return BuildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(unknown)"
}

// ShowVersion prints the version to stdout.
func ShowVersion() {
	fmt.Printf("pductl version %s\n", Version())
}
