package version

// Version is the version of the server binary.
// It is set at build time via -ldflags; "dev" marks local builds.
var Version = "dev"

// Get returns the current version string
func Get() string {
	return Version
}
