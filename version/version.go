// Package version holds build metadata stamped in via ldflags.
package version

import "runtime"

var (
	// GitRelease is the release tag or version string.
	GitRelease = "dev"
	// GitCommit is the short commit hash of the build.
	GitCommit = "unknown"
	// GitCommitDate is the commit timestamp of the build.
	GitCommitDate = "unknown"
	// GoInfo is the Go toolchain used for the build.
	GoInfo = runtime.Version()
)
