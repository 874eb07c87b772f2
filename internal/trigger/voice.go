package trigger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
)

// FallbackPhrase fires the voice trigger in addition to the configured activation phrase.
const FallbackPhrase = "emergency"

// RecognitionOptions configures a recognition session.
type RecognitionOptions struct {
	// Continuous keeps the engine listening after each utterance.
	Continuous bool
	// InterimResults asks for partial transcripts.
	InterimResults bool
	// Locale is the recognition language tag, e.g. "en-IN".
	Locale string
}

// RecognitionEvent is one item of a recognition stream: a final transcript or an engine error.
type RecognitionEvent struct {
	// Transcript is the recognized utterance.
	Transcript string
	// Err is set when the engine failed. No events follow an error.
	Err error
}

// RecognitionStream is a running recognition session. Events may be closed by
// the engine when recognition ends on its own.
type RecognitionStream interface {
	Events() <-chan RecognitionEvent
	Stop() error
}

// RecognitionEngine is the host speech recognition facility.
type RecognitionEngine interface {
	// Supported reports whether recognition is available on this host.
	Supported() bool
	// Start opens a recognition session.
	Start(ctx context.Context, opts RecognitionOptions) (RecognitionStream, error)
}

// VoiceState is the voice trigger state.
type VoiceState int

const (
	// VoiceStopped is not listening.
	VoiceStopped VoiceState = iota
	// VoiceListening evaluates incoming transcripts.
	VoiceListening
	// VoiceTriggered matched a phrase and has an alert in flight.
	VoiceTriggered
)

// String implements fmt.Stringer.
func (s VoiceState) String() string {
	switch s {
	case VoiceStopped:
		return "stopped"
	case VoiceListening:
		return "listening"
	case VoiceTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// listeningSession owns one recognition stream.
type listeningSession struct {
	// stream is the engine session.
	stream RecognitionStream
	// phrase is the lower-cased activation phrase captured at start.
	phrase string
	// done is closed when the session is released.
	done chan struct{}
	// once guards release.
	once sync.Once
}

// release stops the engine stream exactly once.
func (s *listeningSession) release(ctx context.Context) {
	s.once.Do(func() {
		close(s.done)

		if err := s.stream.Stop(); err != nil {
			logger.WarnKV(ctx, "Failed to stop recognition", "error", err)
		}
	})
}

// matches reports whether the lower-case transcript contains the activation phrase or the fallback phrase.
func (s *listeningSession) matches(transcript string) bool {
	if s.phrase != "" && strings.Contains(transcript, s.phrase) {
		return true
	}

	return strings.Contains(transcript, FallbackPhrase)
}

// VoiceTrigger listens for an activation phrase and fires on the first match.
type VoiceTrigger struct {
	// engine is the host recognition facility, nil when absent.
	engine RecognitionEngine
	// locale is requested from the engine.
	locale string
	// phrase returns the activation phrase current at start time.
	phrase func() string
	// alerts dispatches the alert.
	alerts firer
	// failed surfaces recognition errors.
	failed func(ctx context.Context, err error)
	// ended reports a stream the engine closed on its own.
	ended func(ctx context.Context)

	// mu guards state and session.
	mu sync.Mutex
	// state is the current state.
	state VoiceState
	// session is the active session while Listening.
	session *listeningSession
}

// newVoiceTrigger creates a stopped voice trigger.
func newVoiceTrigger(
	engine RecognitionEngine,
	locale string,
	phrase func() string,
	alerts firer,
	failed func(ctx context.Context, err error),
	ended func(ctx context.Context),
) *VoiceTrigger {
	return &VoiceTrigger{
		engine: engine,
		locale: locale,
		phrase: phrase,
		alerts: alerts,
		failed: failed,
		ended:  ended,
	}
}

// Start opens a listening session. It is a no-op while already Listening,
// returns ErrBusy while a voice alert is in flight, ErrUnsupportedCapability
// when the host has no recognition, and a *RecognitionError when the engine
// refuses to start.
func (v *VoiceTrigger) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case VoiceListening:
		return nil
	case VoiceTriggered:
		return ErrBusy
	case VoiceStopped:
	}

	if v.engine == nil || !v.engine.Supported() {
		return ErrUnsupportedCapability
	}

	stream, err := v.engine.Start(ctx, RecognitionOptions{
		Continuous:     true,
		InterimResults: false,
		Locale:         v.locale,
	})
	if err != nil {
		return &RecognitionError{Cause: err}
	}

	session := &listeningSession{
		stream: stream,
		phrase: strings.ToLower(strings.TrimSpace(v.phrase())),
		done:   make(chan struct{}),
	}

	v.session = session
	v.state = VoiceListening

	logger.InfoKV(ctx, "Voice listening started", "phrase", session.phrase, "locale", v.locale)

	go v.listen(ctx, session)

	return nil
}

// Stop releases the listening session. An alert already being sent completes.
func (v *VoiceTrigger) Stop(ctx context.Context) {
	v.mu.Lock()

	if v.state != VoiceListening || v.session == nil {
		v.mu.Unlock()
		return
	}

	session := v.session
	v.session = nil
	v.state = VoiceStopped
	v.mu.Unlock()

	session.release(ctx)

	logger.Info(ctx, "Voice listening stopped")
}

// State returns the current state.
func (v *VoiceTrigger) State() VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.state
}

// listen consumes the session's events until it matches, fails or is released.
// Utterances queued before the engine closed the stream are still matched.
func (v *VoiceTrigger) listen(ctx context.Context, session *listeningSession) {
	events := session.stream.Events()

	for {
		select {
		case <-session.done:
			return
		case event, ok := <-events:
			if !ok {
				v.streamEnded(ctx, session)
				return
			}

			if event.Err != nil {
				v.fail(ctx, session, event.Err)
				return
			}

			// Transcripts are matched and reported in lower case.
			transcript := strings.ToLower(strings.TrimSpace(event.Transcript))

			logger.DebugKV(ctx, "Voice detected", "transcript", transcript)

			if !session.matches(transcript) {
				continue
			}

			v.triggered(ctx, session, transcript)

			return
		}
	}
}

// triggered stops the session and dispatches the matched transcript.
func (v *VoiceTrigger) triggered(ctx context.Context, session *listeningSession, transcript string) {
	v.mu.Lock()

	if v.session != session {
		// Stopped while this utterance was being matched.
		v.mu.Unlock()
		return
	}

	v.session = nil
	v.state = VoiceTriggered
	v.alerts.begin()
	v.mu.Unlock()

	session.release(ctx)

	logger.InfoKV(ctx, "Activation phrase detected", "transcript", transcript)

	v.alerts.fire(ctx, alert.TriggerEvent{
		Kind:       alert.KindVoice,
		Transcript: transcript,
		At:         time.Now(),
	})

	v.mu.Lock()
	v.state = VoiceStopped
	v.mu.Unlock()
}

// fail ends the session on an engine error.
func (v *VoiceTrigger) fail(ctx context.Context, session *listeningSession, cause error) {
	if !v.detach(session) {
		return
	}

	session.release(ctx)

	logger.ErrorKV(ctx, "Speech recognition error", "error", cause)

	v.failed(ctx, &RecognitionError{Cause: cause})
}

// streamEnded handles an engine that closed its stream on its own.
func (v *VoiceTrigger) streamEnded(ctx context.Context, session *listeningSession) {
	if !v.detach(session) {
		return
	}

	session.release(ctx)

	logger.Info(ctx, "Speech recognition ended")

	v.ended(ctx)
}

// detach clears session if it is still the active one.
func (v *VoiceTrigger) detach(session *listeningSession) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != session {
		return false
	}

	v.session = nil
	v.state = VoiceStopped

	return true
}
