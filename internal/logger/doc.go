// Package logger wraps zap with the helpers the sos-button binaries share:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled shortcuts (Info, WarnKV and friends).
//
// Components never hold a logger field; they pull it from the context they
// were handed so every trigger and transport logs with its scope attached.
package logger
