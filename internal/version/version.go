// Package version carries build metadata stamped in with -ldflags.
package version

var (
	// Version is the release version.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns "collev <version> (<sha>, built <time>)".
func String() string {
	return "collev " + Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
