// Package version carries build identification, injected at link time
// via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identification for -version output.
func String() string {
	return fmt.Sprintf("lascatalog %s (%s, built %s)", Version, GitSHA, BuildTime)
}
