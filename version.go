package encattr

import "fmt"

// Version of the encattr library
const Version = "0.1.0"

// Build information (set by ldflags during build)
var (
	GitCommit string
	BuildDate string
)

// VersionInfo returns formatted version information
func VersionInfo() string {
	if GitCommit == "" {
		return fmt.Sprintf("encattr v%s", Version)
	}
	return fmt.Sprintf("encattr v%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
