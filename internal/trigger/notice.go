package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/sos-button/internal/domain/alert"
)

// NoticeLevel grades a user-visible notice.
type NoticeLevel string

const (
	// LevelInfo is a confirmation.
	LevelInfo NoticeLevel = "info"
	// LevelWarning is a recoverable problem the user has to act on.
	LevelWarning NoticeLevel = "warning"
	// LevelError is a failed emergency action.
	LevelError NoticeLevel = "error"
)

// Notice is a message the presentation layer shows to the user.
type Notice struct {
	// Kind is the trigger the notice is about.
	Kind alert.TriggerKind `json:"kind"`
	// Level grades the notice.
	Level NoticeLevel `json:"level"`
	// Text is the user-facing message.
	Text string `json:"text"`
	// Err is the underlying failure, if any.
	Err error `json:"-"`
	// At is when the notice was raised.
	At time.Time `json:"at"`
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}

// nopNotifier drops notices.
type nopNotifier struct{}

// Notify does nothing.
func (nopNotifier) Notify(context.Context, Notice) {}

const (
	textPanicSent      = "Emergency alert sent to your emergency contacts!"
	textVoiceSent      = "Voice SOS alert sent to your emergency contacts!"
	textPanicFailed    = "Failed to send emergency alert. Please call emergency services directly."
	textVoiceFailed    = "Failed to send voice alert. Please try the manual panic button or call emergency services directly."
	textNoLocation     = "Location not available for emergency alert. Please wait for your location to be determined."
	textUnsupported    = "Speech recognition is not supported on this device."
	textVoiceBusy      = "Your previous voice alert is still being sent."
	textRecognitionErr = "Voice listening stopped because of a recognition error. Please start it again."
	textRecognitionEnd = "Voice listening ended. Start it again to keep listening."
	textDecoyShown     = "Incoming call from "
	textDecoyEnded     = "Fake call ended."
)

// dispatchNotice converts a dispatch result into the notice shown to the user.
func dispatchNotice(kind alert.TriggerKind, err error, at time.Time) Notice {
	notice := Notice{
		Kind: kind,
		Err:  err,
		At:   at,
	}

	switch {
	case err == nil:
		notice.Level = LevelInfo
		notice.Text = textPanicSent

		if kind == alert.KindVoice {
			notice.Text = textVoiceSent
		}
	case errors.Is(err, ErrMissingLocation):
		notice.Level = LevelWarning
		notice.Text = textNoLocation
	default:
		notice.Level = LevelError
		notice.Text = textPanicFailed

		if kind == alert.KindVoice {
			notice.Text = textVoiceFailed
		}
	}

	return notice
}
