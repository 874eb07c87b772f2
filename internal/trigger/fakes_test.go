package trigger

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/sos-button/internal/domain/alert"
)

var (
	errTestNetwork = errors.New("connection refused")
	errTestEngine  = errors.New("audio-capture")
	errTestJournal = errors.New("disk full")
)

// fakeSender records submitted alerts.
type fakeSender struct {
	// mu protects requests.
	mu sync.Mutex
	// requests are the submitted alerts in order.
	requests []*alert.AlertRequest
	// ids are the request ids in order.
	ids []string
	// err is returned from every submission when set.
	err error
	// release, when set, blocks every submission until it is closed.
	release chan struct{}
}

// SubmitAlert records the request and returns err or an ack.
func (f *fakeSender) SubmitAlert(_ context.Context, requestID string, req *alert.AlertRequest) (*alert.Ack, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.ids = append(f.ids, requestID)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	if f.err != nil {
		return nil, f.err
	}

	return &alert.Ack{AlertID: "alert-1", Status: "active"}, nil
}

// sent returns a copy of the submitted requests.
func (f *fakeSender) sent() []*alert.AlertRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*alert.AlertRequest(nil), f.requests...)
}

// fakeLocation serves a fixed sample.
type fakeLocation struct {
	sample *alert.LocationSample
}

// Current returns the sample.
func (f *fakeLocation) Current() *alert.LocationSample {
	return f.sample
}

// fakeSettings serves fixed settings.
type fakeSettings struct {
	settings *alert.Settings
}

// Settings returns the settings.
func (f *fakeSettings) Settings() *alert.Settings {
	return f.settings
}

// fakeJournal collects attempts.
type fakeJournal struct {
	mu       sync.Mutex
	attempts []*alert.Attempt
	err      error
}

// Record stores the attempt.
func (f *fakeJournal) Record(_ context.Context, attempt *alert.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts = append(f.attempts, attempt)

	return f.err
}

// fakeStream is a recognition session driven by the test.
type fakeStream struct {
	events  chan RecognitionEvent
	mu      sync.Mutex
	stopped bool
}

// newFakeStream creates an open stream.
func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan RecognitionEvent, 8)}
}

// Events returns the event channel.
func (s *fakeStream) Events() <-chan RecognitionEvent {
	return s.events
}

// Stop marks the stream stopped.
func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true

	return nil
}

// isStopped reports whether Stop was called.
func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped
}

// say delivers a final transcript.
func (s *fakeStream) say(transcript string) {
	s.events <- RecognitionEvent{Transcript: transcript}
}

// fail delivers an engine error.
func (s *fakeStream) fail(err error) {
	s.events <- RecognitionEvent{Err: err}
}

// fakeEngine hands out fakeStreams.
type fakeEngine struct {
	supported bool
	startErr  error

	mu      sync.Mutex
	streams []*fakeStream
	options []RecognitionOptions
}

// Supported reports the configured capability.
func (e *fakeEngine) Supported() bool {
	return e.supported
}

// Start opens a new fake stream.
func (e *fakeEngine) Start(_ context.Context, opts RecognitionOptions) (RecognitionStream, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := newFakeStream()
	e.streams = append(e.streams, s)
	e.options = append(e.options, opts)

	return s, nil
}

// last returns the most recent stream.
func (e *fakeEngine) last() *fakeStream {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.streams) == 0 {
		return nil
	}

	return e.streams[len(e.streams)-1]
}

// started returns how many sessions were opened.
func (e *fakeEngine) started() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.streams)
}

// recordingNotifier collects notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify stores the notice.
func (r *recordingNotifier) Notify(_ context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notices = append(r.notices, notice)
}

// all returns a copy of the collected notices.
func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notice(nil), r.notices...)
}

// byKind returns notices for kind.
func (r *recordingNotifier) byKind(kind alert.TriggerKind) []Notice {
	var out []Notice

	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}

	return out
}

// testHarness bundles a controller with its fakes.
type testHarness struct {
	controller *Controller
	sender     *fakeSender
	location   *fakeLocation
	engine     *fakeEngine
	journal    *fakeJournal
	notifier   *recordingNotifier
}

// bengaluru is the sample location used throughout the tests.
func bengaluru() *alert.LocationSample {
	return &alert.LocationSample{
		Latitude:  12.97,
		Longitude: 77.59,
		Timestamp: "2026-10-18T10:00:00Z",
	}
}

// newHarness builds a controller with a located user and a supported engine.
func newHarness() *testHarness {
	h := &testHarness{
		sender:   new(fakeSender),
		location: &fakeLocation{sample: bengaluru()},
		engine:   &fakeEngine{supported: true},
		journal:  new(fakeJournal),
		notifier: new(recordingNotifier),
	}

	h.controller = New(Options{}, Deps{
		Sender:   h.sender,
		Location: h.location,
		Settings: &fakeSettings{settings: &alert.Settings{
			ActivationPhrase: "help me",
			EmergencyMessage: "I need help! My current location is: [LOCATION].",
		}},
		Engine:   h.engine,
		Journal:  h.journal,
		Notifier: h.notifier,
	})

	return h
}

// orderFirer records the order in which a trigger calls begin and fire.
type orderFirer struct {
	mu    sync.Mutex
	calls []string
}

// begin records the call.
func (f *orderFirer) begin() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "begin")
}

// fire records the call.
func (f *orderFirer) fire(context.Context, alert.TriggerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, "fire")
}

// recorded returns a copy of the calls.
func (f *orderFirer) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}
