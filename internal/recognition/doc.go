// Package recognition provides speech recognition engines for the voice trigger.
//
// FeedEngine turns externally supplied transcripts (console lines, a speech
// daemon, the control surface) into recognition sessions. Unsupported models a
// host without any recognition facility.
package recognition
