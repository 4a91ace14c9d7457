package config

import "fmt"

// ModuleName is the name of the module as defined in go.mod.
const ModuleName = "github/chapool/cardano-vault"

// The following vars are injected via -ldflags at build time.
var (
	Commit    = "< 40 chars git commit hash via ldflags >"
	BuildDate = "1970-01-01T00:00:00+00:00"
)

// GetFormattedBuildArgs returns string representation of the build args
// injected via ldflags in the format "<ModuleName> @ <Commit> (<BuildDate>)".
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
