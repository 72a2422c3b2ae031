// Package version carries build identification, overridden at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0"
package version

var (
	// Version is the release version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
)

// String formats the build identification for startup logs.
func String() string {
	return Version + " (" + GitSHA + ")"
}
