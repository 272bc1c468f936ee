// Package version carries build metadata set through -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/sassc/internal/version.Version=v1.2.0".
package version

import (
	"fmt"
	"runtime/debug"
)

var Version = "unknown"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. When ldflags were
// not used the module version recorded by the Go toolchain is used instead.
func String() string {
	v := Version
	if v == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("sassc %s (commit %s, built %s)", v, GitCommit, BuildTime)
}
