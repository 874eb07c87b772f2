// Package integration runs the controller end to end: a fake safety API, the
// local control surface and the trigger controller wired by the service layer.
package integration
