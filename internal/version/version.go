// Package version provides build-time version information.
package version

// These variables are set at build time using -ldflags.
var (
	// Version is the semantic version of the annotation tool.
	Version = "0.2.0"

	// BuildTime is the UTC time when the binary was built.
	BuildTime = "unknown"

	// GitCommit is the git commit hash of the build.
	GitCommit = "unknown"
)
