package alert

import (
	"fmt"
	"strings"
	"time"
)

// TriggerKind identifies which trigger raised an alert.
type TriggerKind string

const (
	// KindPanic is the hold-to-confirm panic button.
	KindPanic TriggerKind = "panic_button"
	// KindVoice is the voice-activated SOS.
	KindVoice TriggerKind = "voice_sos"
	// KindDecoy is the fake incoming call. It never reaches the dispatcher.
	KindDecoy TriggerKind = "fake_call"
)

// String returns the wire name of the kind.
func (k TriggerKind) String() string {
	return string(k)
}

// LocationSample is the last known position of the user.
type LocationSample struct {
	// Latitude in decimal degrees.
	Latitude float64 `json:"latitude" yaml:"latitude"`
	// Longitude in decimal degrees.
	Longitude float64 `json:"longitude" yaml:"longitude"`
	// Address is an optional reverse-geocoded label.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Accuracy is the optional horizontal accuracy in meters.
	Accuracy *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	// Timestamp is when the fix was taken, RFC 3339.
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// NewLocationSample builds a sample stamped with the provided time.
func NewLocationSample(lat, lng float64, at time.Time) *LocationSample {
	return &LocationSample{
		Latitude:  lat,
		Longitude: lng,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Clone returns a deep copy of the sample.
func (l *LocationSample) Clone() *LocationSample {
	if l == nil {
		return nil
	}

	cloned := *l

	if l.Accuracy != nil {
		accuracy := *l.Accuracy
		cloned.Accuracy = &accuracy
	}

	return &cloned
}

// Describe renders the sample for human-facing messages: the address when
// known, coordinates otherwise.
func (l *LocationSample) Describe() string {
	if l == nil {
		return "unknown location"
	}

	if address := strings.TrimSpace(l.Address); address != "" {
		return address
	}

	return fmt.Sprintf("Lat: %g, Lng: %g", l.Latitude, l.Longitude)
}

// TriggerEvent is created the instant a trigger condition is satisfied.
type TriggerEvent struct {
	// Kind is the trigger that fired.
	Kind TriggerKind
	// Transcript is the matched utterance, set for voice events only.
	Transcript string
	// At is when the trigger condition was satisfied.
	At time.Time
}

// AlertRequest is the body of a single alert submission.
type AlertRequest struct {
	// Type is the trigger kind wire name.
	Type string `json:"type"`
	// Message is the human-readable text forwarded to emergency contacts.
	Message string `json:"message"`
	// Location is the position at the moment of dispatch.
	Location *LocationSample `json:"location"`
}

// Ack is the server acknowledgment of an alert submission.
type Ack struct {
	// AlertID is the server-assigned alert identifier, if returned.
	AlertID string `json:"id"`
	// Status is the server-side alert status (usually "active").
	Status string `json:"status"`
	// ContactsNotified lists contact ids the server reached.
	ContactsNotified []string `json:"contacts_notified"`
	// CreatedAt is the server timestamp of the alert.
	CreatedAt string `json:"created_at"`
}

// Contact is an emergency contact the server notifies when an alert arrives.
type Contact struct {
	// ID is the server contact identifier.
	ID string `json:"id"`
	// Name is the contact's display name.
	Name string `json:"name"`
	// PhoneNumber receives the alert SMS.
	PhoneNumber string `json:"phone_number"`
	// Relationship is family, friend, colleague or neighbor.
	Relationship string `json:"relationship"`
	// IsPrimary marks the first contact to call.
	IsPrimary bool `json:"is_primary"`
}

// RemoteAlert is an alert as stored by the server.
type RemoteAlert struct {
	// ID is the server alert identifier.
	ID string `json:"id"`
	// Type is the trigger kind wire name.
	Type string `json:"type"`
	// Message is the text forwarded to contacts.
	Message string `json:"message"`
	// Location is where the alert was raised.
	Location *LocationSample `json:"location"`
	// Status is active, resolved or false_alarm.
	Status string `json:"status"`
	// ContactsNotified lists the contact ids the server reached.
	ContactsNotified []string `json:"contacts_notified"`
	// CreatedAt is the server timestamp.
	CreatedAt string `json:"created_at"`
}

// Settings are the user preferences the triggers consume.
type Settings struct {
	// ActivationPhrase is matched against voice transcripts.
	ActivationPhrase string `json:"voice_activation_phrase"`
	// EmergencyMessage is the panic message template, "[LOCATION]" is substituted.
	EmergencyMessage string `json:"emergency_message"`
	// VoiceMonitoringEnabled mirrors the user's voice monitoring preference.
	VoiceMonitoringEnabled bool `json:"voice_monitoring_enabled"`
}

// Clone returns a copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// EmergencyNumbers maps a service name (police, ambulance...) to a phone number.
type EmergencyNumbers map[string]string

// DefaultEmergencyNumbers returns the built-in India numbers used when the API is unreachable.
func DefaultEmergencyNumbers() EmergencyNumbers {
	return EmergencyNumbers{
		"police":              "100",
		"fire":                "101",
		"ambulance":           "102",
		"women_helpline":      "1091",
		"child_helpline":      "1098",
		"disaster_management": "108",
	}
}

// Outcome is the result of one dispatch attempt.
type Outcome string

const (
	// OutcomeSent means the server acknowledged the alert.
	OutcomeSent Outcome = "sent"
	// OutcomeFailed means the submission reached the transport and failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeRejected means the alert was refused locally (no location) and never sent.
	OutcomeRejected Outcome = "rejected"
)

// Attempt is a journal record of one dispatch attempt.
type Attempt struct {
	// RequestID correlates the attempt with the X-Request-ID header sent to the API.
	RequestID string
	// Kind is the trigger that fired.
	Kind TriggerKind
	// Message is the text that was (or would have been) sent.
	Message string
	// Location is the sample used, nil for rejected attempts.
	Location *LocationSample
	// Outcome is the attempt result.
	Outcome Outcome
	// AlertID is the server alert id on success.
	AlertID string
	// Error is the failure cause on failed or rejected attempts.
	Error string
	// At is when the attempt resolved.
	At time.Time
}
