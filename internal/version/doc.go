// Package version exposes build metadata for sos-button.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags:
//
//	go build -ldflags "-X github.com/oshokin/sos-button/internal/version.Version=1.2.0"
//
// Short and Full render the version for CLI output and logs.
package version
