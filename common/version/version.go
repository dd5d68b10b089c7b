// Package version carries build information injected with -ldflags.
package version

var (
	// Version is the release tag.
	Version = "v0.0.0-dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

// String returns "turbobot <version> (<commit>) built at <time>".
func String() string {
	return "turbobot " + Version + " (" + GitCommit + ") built at " + BuildTime
}
