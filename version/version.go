// Package version exposes the build version of the registry. The value is
// overridden at link time for release builds.
package version

// Version is the current version of the garden registry.
var Version = "dev"
