// Package version reports the postbuilder build version.
package version

import "runtime/debug"

// Version should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/postbuilder/internal/version.Version=v1.2.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns Version, falling back to the module version recorded by the
// Go toolchain, with the commit appended when known.
func String() string {
	v := Version
	if v == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if GitCommit != "unknown" && GitCommit != "" {
		v += " (" + GitCommit + ")"
	}
	return v
}
