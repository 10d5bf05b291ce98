package version

// version is the release identifier, overridden at build time via
// -ldflags "-X github.com/dispatchd/dispatchd/internal/version.version=vX.Y.Z".
var version = "0.1.0-dev"

func Version() string {
	return version
}
