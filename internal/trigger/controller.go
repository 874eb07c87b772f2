package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

const (
	// DefaultHoldDelay is the panic confirmation delay.
	DefaultHoldDelay = 3 * time.Second
	// DefaultDecoyDuration is how long the fake call stays up.
	DefaultDecoyDuration = 10 * time.Second
	// DefaultActivationPhrase is used when settings carry no phrase.
	DefaultActivationPhrase = "help me"
	// DefaultLocale is the recognition locale.
	DefaultLocale = "en-IN"
	// DefaultDecoyCaller is the fake caller name.
	DefaultDecoyCaller = "Dad"
)

// Options holds the controller timings and labels. Zero values take defaults.
type Options struct {
	// HoldDelay is the panic confirmation delay.
	HoldDelay time.Duration
	// DecoyDuration is the fake call display time.
	DecoyDuration time.Duration
	// DecoyCaller is the fake caller name.
	DecoyCaller string
	// RecognitionLocale is requested from the recognition engine.
	RecognitionLocale string
}

// Deps are the external collaborators of the controller.
type Deps struct {
	// Sender submits alerts. Required for alerts to leave the device.
	Sender AlertSender
	// Location provides the last known position.
	Location LocationSource
	// Settings provides the activation phrase and message template.
	Settings SettingsSource
	// Engine is the speech recognition facility, nil when the host has none.
	Engine RecognitionEngine
	// Journal records dispatch attempts, optional.
	Journal Journal
	// Notifier shows notices to the user, optional.
	Notifier Notifier
}

// Status is a snapshot of every trigger for the presentation layer.
type Status struct {
	// Panic is the panic trigger state.
	Panic string `json:"panic"`
	// Voice is the voice trigger state.
	Voice string `json:"voice"`
	// Decoy is the fake call overlay state.
	Decoy DecoyState `json:"decoy"`
	// Location is the last known position, nil when unknown.
	Location *alert.LocationSample `json:"location"`
	// InFlight is the number of alerts being sent.
	InFlight int `json:"in_flight"`
}

// Controller owns the three triggers and the dispatcher they share.
type Controller struct {
	// dispatcher sends alerts.
	dispatcher *Dispatcher
	// location is read at dispatch time only.
	location LocationSource
	// settings supplies the activation phrase.
	settings SettingsSource
	// notifier surfaces notices.
	notifier Notifier

	// panicButton is the hold-to-confirm trigger.
	panicButton *PanicTrigger
	// voice is the phrase trigger.
	voice *VoiceTrigger
	// decoy is the fake call overlay.
	decoy *DecoyOverlay

	// mu guards pending.
	mu sync.Mutex
	// drained is signalled when pending drops to zero.
	drained *sync.Cond
	// pending is the number of alerts being sent.
	pending int
}

// New wires a controller. Triggers start Idle/Stopped with no overlay.
func New(opts Options, deps Deps) *Controller {
	opts = withDefaults(opts)

	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	c := &Controller{
		dispatcher: NewDispatcher(deps.Sender, WithJournal(deps.Journal), WithSettings(deps.Settings)),
		location:   deps.Location,
		settings:   deps.Settings,
		notifier:   deps.Notifier,
	}

	c.drained = sync.NewCond(&c.mu)
	c.panicButton = newPanicTrigger(opts.HoldDelay, c)
	c.voice = newVoiceTrigger(deps.Engine, opts.RecognitionLocale, c.activationPhrase, c, c.recognitionFailed, c.recognitionEnded)
	c.decoy = newDecoyOverlay(opts.DecoyDuration, opts.DecoyCaller, c.decoyChanged)

	return c
}

// Panic returns the panic trigger.
func (c *Controller) Panic() *PanicTrigger {
	return c.panicButton
}

// Voice returns the voice trigger.
func (c *Controller) Voice() *VoiceTrigger {
	return c.voice
}

// Decoy returns the fake call overlay.
func (c *Controller) Decoy() *DecoyOverlay {
	return c.decoy
}

// StartVoice starts listening and converts start failures to notices.
func (c *Controller) StartVoice(ctx context.Context) error {
	err := c.voice.Start(logger.WithName(ctx, "voice"))
	if err == nil {
		return nil
	}

	notice := Notice{
		Kind:  alert.KindVoice,
		Level: LevelWarning,
		Text:  textUnsupported,
		Err:   err,
		At:    time.Now(),
	}

	switch {
	case errors.Is(err, ErrUnsupportedCapability):
	case errors.Is(err, ErrBusy):
		notice.Text = textVoiceBusy
	default:
		notice.Level = LevelError
		notice.Text = textRecognitionErr
	}

	c.notifier.Notify(ctx, notice)

	return err
}

// PressPanic presses the panic button.
func (c *Controller) PressPanic(ctx context.Context) bool {
	return c.panicButton.Press(logger.WithName(ctx, "panic"))
}

// ReleasePanic releases the panic button.
func (c *Controller) ReleasePanic() bool {
	return c.panicButton.Release()
}

// StopVoice stops listening.
func (c *Controller) StopVoice(ctx context.Context) {
	c.voice.Stop(logger.WithName(ctx, "voice"))
}

// ShowDecoy shows the fake call.
func (c *Controller) ShowDecoy() (Handle, bool) {
	return c.decoy.Show()
}

// DismissDecoy dismisses the fake call on screen, if any.
func (c *Controller) DismissDecoy() bool {
	return c.decoy.DismissActive()
}

// Status returns a snapshot of every trigger.
func (c *Controller) Status() Status {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	var location *alert.LocationSample
	if c.location != nil {
		location = c.location.Current().Clone()
	}

	return Status{
		Panic:    c.panicButton.State().String(),
		Voice:    c.voice.State().String(),
		Decoy:    c.decoy.State(),
		Location: location,
		InFlight: pending,
	}
}

// Close tears every trigger down and waits for alerts in flight.
func (c *Controller) Close(ctx context.Context) {
	c.panicButton.close()
	c.voice.Stop(ctx)
	c.decoy.close()

	c.mu.Lock()
	for c.pending > 0 {
		c.drained.Wait()
	}
	c.mu.Unlock()
}

// begin counts an alert as in flight. Triggers call it before dropping their lock.
func (c *Controller) begin() {
	c.setPending(1)
}

// fire dispatches a trigger event and surfaces the result. Cancellation of the
// caller's context does not abort an alert already leaving the device.
func (c *Controller) fire(ctx context.Context, event alert.TriggerEvent) {
	defer c.setPending(-1)

	ctx = context.WithoutCancel(ctx)

	var location *alert.LocationSample
	if c.location != nil {
		location = c.location.Current()
	}

	message := c.dispatcher.MessageFor(event, location)

	_, err := c.dispatcher.Dispatch(ctx, event.Kind, message, location)

	c.notifier.Notify(ctx, dispatchNotice(event.Kind, err, time.Now()))
}

// recognitionFailed surfaces an engine error.
func (c *Controller) recognitionFailed(ctx context.Context, err error) {
	c.notifier.Notify(ctx, Notice{
		Kind:  alert.KindVoice,
		Level: LevelError,
		Text:  textRecognitionErr,
		Err:   err,
		At:    time.Now(),
	})
}

// recognitionEnded reports that the engine stopped listening without a match.
func (c *Controller) recognitionEnded(ctx context.Context) {
	c.notifier.Notify(ctx, Notice{
		Kind:  alert.KindVoice,
		Level: LevelWarning,
		Text:  textRecognitionEnd,
		Err:   ErrRecognitionEnded,
		At:    time.Now(),
	})
}

// decoyChanged announces the fake call.
func (c *Controller) decoyChanged(state DecoyState) {
	notice := Notice{
		Kind:  alert.KindDecoy,
		Level: LevelInfo,
		Text:  textDecoyEnded,
		At:    time.Now(),
	}

	if state.Active {
		notice.Text = textDecoyShown + state.Caller
	}

	c.notifier.Notify(context.Background(), notice)
}

// activationPhrase returns the phrase from settings, or the default.
func (c *Controller) activationPhrase() string {
	if c.settings != nil {
		if s := c.settings.Settings(); s != nil && s.ActivationPhrase != "" {
			return s.ActivationPhrase
		}
	}

	return DefaultActivationPhrase
}

// setPending adjusts the in-flight counter.
func (c *Controller) setPending(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending += delta
	if c.pending == 0 {
		c.drained.Broadcast()
	}
}

// withDefaults fills zero options.
func withDefaults(opts Options) Options {
	if opts.HoldDelay <= 0 {
		opts.HoldDelay = DefaultHoldDelay
	}

	if opts.DecoyDuration <= 0 {
		opts.DecoyDuration = DefaultDecoyDuration
	}

	if opts.DecoyCaller == "" {
		opts.DecoyCaller = DefaultDecoyCaller
	}

	if opts.RecognitionLocale == "" {
		opts.RecognitionLocale = DefaultLocale
	}

	return opts
}
