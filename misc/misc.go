// Package misc keeps build time program identity.
package misc

// Set with -ldflags "-X gj2kml/misc.version=... -X gj2kml/misc.gitHash=..."
var (
	appName = "gj2kml"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
