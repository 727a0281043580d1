// Package version is the single source of truth for the SDK version.
package version

// Version is the SDK release version. Overridden at build time via
// -ldflags "-X github.com/aequitas-ai/lvcop-go/internal/version.Version=...".
var Version = "1.0.0"

// UserAgent is the default User-Agent header sent by the SDK.
func UserAgent() string {
	return "lvcop-go/" + Version
}
