// Package config defines the sos-button settings file and provides helpers to
// load (YAML plus SOS_* environment overrides), validate and save it.
package config
