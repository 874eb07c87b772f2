package trigger

import (
	"errors"
	"fmt"

	"github.com/oshokin/sos-button/internal/domain/alert"
)

var (
	// ErrMissingLocation is returned by Dispatch when no location sample is available.
	// Nothing is sent to the server.
	ErrMissingLocation = errors.New("location not available")
	// ErrUnsupportedCapability is returned by VoiceTrigger.Start when the host has no speech recognition.
	ErrUnsupportedCapability = errors.New("speech recognition is not supported")
	// ErrRecognitionFailure matches every *RecognitionError.
	ErrRecognitionFailure = errors.New("speech recognition failed")
	// ErrDispatchFailed matches every *DispatchError.
	ErrDispatchFailed = errors.New("alert dispatch failed")
	// ErrRecognitionEnded is carried by the notice raised when the engine closes
	// its stream without a match.
	ErrRecognitionEnded = errors.New("speech recognition ended")
	// ErrBusy is returned when a trigger cannot start because its previous alert is still in flight.
	ErrBusy = errors.New("previous alert is still being sent")

	// errNotDispatchable is returned for trigger kinds that never reach the network.
	errNotDispatchable = errors.New("trigger kind is not dispatchable")
	// errSenderRequired is returned when the dispatcher has nowhere to send alerts.
	errSenderRequired = errors.New("alert sender is not configured")
)

// RecognitionError is an engine-reported failure while listening.
type RecognitionError struct {
	// Cause is the engine error.
	Cause error
}

// Error implements error.
func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition failed: %v", e.Cause)
}

// Unwrap returns the engine error.
func (e *RecognitionError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrRecognitionFailure) hold for every RecognitionError.
func (e *RecognitionError) Is(target error) bool {
	return target == ErrRecognitionFailure
}

// DispatchError is a failed alert submission.
type DispatchError struct {
	// Kind is the trigger whose alert failed.
	Kind alert.TriggerKind
	// RequestID is the id sent with the failed request.
	RequestID string
	// Cause is the transport or server error.
	Cause error
}

// Error implements error.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s alert: %v", e.Kind, e.Cause)
}

// Unwrap returns the transport or server error.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrDispatchFailed) hold for every DispatchError.
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailed
}
