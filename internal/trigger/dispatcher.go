package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

// AlertSender submits an alert to the remote alert endpoint.
type AlertSender interface {
	SubmitAlert(ctx context.Context, requestID string, req *alert.AlertRequest) (*alert.Ack, error)
}

// Journal records every dispatch attempt locally.
type Journal interface {
	Record(ctx context.Context, attempt *alert.Attempt) error
}

// SettingsSource returns the current user settings snapshot.
type SettingsSource interface {
	Settings() *alert.Settings
}

// LocationSource returns the most recent location sample, or nil when unknown.
type LocationSource interface {
	Current() *alert.LocationSample
}

const (
	// locationPlaceholder is replaced with the location description in the emergency message template.
	locationPlaceholder = "[LOCATION]"
	// fallbackPanicMessage is sent when no template is configured.
	fallbackPanicMessage = "EMERGENCY: Panic button activated. Please check on me immediately!"
	// voiceMessageFormat wraps the matched transcript.
	voiceMessageFormat = "Voice SOS activated. Detected phrase: %q"
)

// Dispatcher packages trigger events into alert requests and sends them.
// It never retries: every fire produces at most one outbound request.
type Dispatcher struct {
	// sender performs the network call.
	sender AlertSender
	// settings supplies the emergency message template.
	settings SettingsSource
	// journal records attempts; nil disables journaling.
	journal Journal
	// newRequestID generates request ids.
	newRequestID func() string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithJournal records every attempt in j.
func WithJournal(j Journal) DispatcherOption {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

// WithSettings renders panic messages from the template held by s.
func WithSettings(s SettingsSource) DispatcherOption {
	return func(d *Dispatcher) {
		d.settings = s
	}
}

// NewDispatcher creates a dispatcher sending through sender.
func NewDispatcher(sender AlertSender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:       sender,
		newRequestID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch sends one alert. It fails with ErrMissingLocation before any network
// call when location is nil, and with a *DispatchError when the submission fails.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	kind alert.TriggerKind,
	message string,
	location *alert.LocationSample,
) (*alert.Ack, error) {
	if kind == alert.KindDecoy || kind == "" {
		return nil, fmt.Errorf("%q: %w", kind, errNotDispatchable)
	}

	attempt := &alert.Attempt{
		RequestID: d.newRequestID(),
		Kind:      kind,
		Message:   message,
	}

	ctx = logger.WithKV(ctx, "trigger", kind.String(), "request_id", attempt.RequestID)

	// Precondition: never hit the network without a position.
	if location == nil {
		logger.Warn(ctx, "Alert not sent: location is not available")

		attempt.Outcome = alert.OutcomeRejected
		attempt.Error = ErrMissingLocation.Error()
		d.record(ctx, attempt)

		return nil, ErrMissingLocation
	}

	if d.sender == nil {
		return nil, errSenderRequired
	}

	request := &alert.AlertRequest{
		Type:     kind.String(),
		Message:  message,
		Location: location.Clone(),
	}
	attempt.Location = request.Location

	ack, err := d.sender.SubmitAlert(ctx, attempt.RequestID, request)
	if err != nil {
		logger.ErrorKV(ctx, "Alert submission failed", "error", err)

		attempt.Outcome = alert.OutcomeFailed
		attempt.Error = err.Error()
		d.record(ctx, attempt)

		return nil, &DispatchError{
			Kind:      kind,
			RequestID: attempt.RequestID,
			Cause:     err,
		}
	}

	if ack == nil {
		ack = new(alert.Ack)
	}

	logger.InfoKV(ctx, "Alert sent", "alert_id", ack.AlertID, "contacts_notified", len(ack.ContactsNotified))

	attempt.Outcome = alert.OutcomeSent
	attempt.AlertID = ack.AlertID
	d.record(ctx, attempt)

	return ack, nil
}

// MessageFor renders the alert message for event at location.
func (d *Dispatcher) MessageFor(event alert.TriggerEvent, location *alert.LocationSample) string {
	if event.Kind == alert.KindVoice {
		return fmt.Sprintf(voiceMessageFormat, event.Transcript)
	}

	template := ""
	if d.settings != nil {
		if s := d.settings.Settings(); s != nil {
			template = strings.TrimSpace(s.EmergencyMessage)
		}
	}

	if template == "" {
		return fallbackPanicMessage
	}

	return strings.ReplaceAll(template, locationPlaceholder, location.Describe())
}

// record writes the attempt to the journal. Journal failures are logged and
// never change the dispatch result.
func (d *Dispatcher) record(ctx context.Context, attempt *alert.Attempt) {
	if d.journal == nil {
		return
	}

	attempt.At = time.Now()

	if err := d.journal.Record(ctx, attempt); err != nil {
		logger.ErrorKV(ctx, "Failed to journal alert attempt", "error", err)
	}
}

