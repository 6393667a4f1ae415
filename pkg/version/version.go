// Package version provides build version information.
package version

import "runtime"

// Build information, overridable at link time with -ldflags.
var (
	BuildVersion = "0.2.0"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Info returns the build information as a map for logging and health output.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
