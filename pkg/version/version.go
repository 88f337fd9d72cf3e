package version

// Version is the current roost release.
const Version = "0.4.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "roost version " + Version
}

// APIVersion returns just the version number for API responses and page footers
func APIVersion() string {
	return Version
}
