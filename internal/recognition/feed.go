package recognition

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/trigger"
)

// defaultBuffer is the number of utterances a session queues before dropping.
const defaultBuffer = 16

var (
	// ErrNoSession is returned by Feed when nobody is listening.
	ErrNoSession = errors.New("no active recognition session")
	// ErrSessionBusy is returned by Feed when the session queue is full.
	ErrSessionBusy = errors.New("recognition session is not keeping up")
	// errAlreadyListening is returned by Start when a session is already open.
	errAlreadyListening = errors.New("recognition is already running")
)

// FeedEngine is a recognition engine whose utterances are pushed by the caller.
// At most one session is open at a time.
type FeedEngine struct {
	// mu guards active.
	mu sync.Mutex
	// active is the open session, nil when none.
	active *feedStream
}

// NewFeedEngine creates an engine with no open session.
func NewFeedEngine() *FeedEngine {
	return new(FeedEngine)
}

// Supported always reports true.
func (e *FeedEngine) Supported() bool {
	return true
}

// Start opens a session. Interim results are never produced: each Feed is final.
func (e *FeedEngine) Start(ctx context.Context, opts trigger.RecognitionOptions) (trigger.RecognitionStream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		return nil, errAlreadyListening
	}

	stream := &feedStream{
		engine: e,
		events: make(chan trigger.RecognitionEvent, defaultBuffer),
		done:   make(chan struct{}),
	}

	e.active = stream

	logger.DebugKV(ctx, "Recognition session opened", "locale", opts.Locale, "continuous", opts.Continuous)

	return stream, nil
}

// Feed delivers one final utterance to the open session.
func (e *FeedEngine) Feed(transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}

	return e.deliver(trigger.RecognitionEvent{Transcript: transcript})
}

// FeedWait is Feed that waits for room in the session queue instead of failing
// with ErrSessionBusy. It gives up when ctx is done or the session closes.
func (e *FeedEngine) FeedWait(ctx context.Context, transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil
	}

	stream := e.current()
	if stream == nil {
		return ErrNoSession
	}

	return stream.send(ctx, trigger.RecognitionEvent{Transcript: transcript})
}

// Fail reports an engine error to the open session, which then ends.
func (e *FeedEngine) Fail(cause error) error {
	return e.deliver(trigger.RecognitionEvent{Err: cause})
}

// End closes the open session's stream like an engine that stopped on its own.
// Utterances already queued are still delivered.
func (e *FeedEngine) End() error {
	stream := e.current()
	if stream == nil {
		return ErrNoSession
	}

	stream.end()

	return nil
}

// deliver queues event on the active session without blocking.
func (e *FeedEngine) deliver(event trigger.RecognitionEvent) error {
	stream := e.current()
	if stream == nil {
		return ErrNoSession
	}

	return stream.offer(event)
}

// current returns the open session, nil when none.
func (e *FeedEngine) current() *feedStream {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.active
}

// release detaches stream if it is still active.
func (e *FeedEngine) release(stream *feedStream) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == stream {
		e.active = nil
	}
}

// feedStream is one FeedEngine session.
type feedStream struct {
	engine *FeedEngine
	events chan trigger.RecognitionEvent
	done   chan struct{}
	once   sync.Once

	// mu guards ended. Senders hold it shared so end never closes events under them.
	mu    sync.RWMutex
	ended bool
}

// Events returns the session's utterances.
func (s *feedStream) Events() <-chan trigger.RecognitionEvent {
	return s.events
}

// Stop ends the session. Further Feed calls return ErrNoSession.
func (s *feedStream) Stop() error {
	s.once.Do(func() {
		close(s.done)
		s.engine.release(s)
	})

	return nil
}

// offer queues event without blocking.
func (s *feedStream) offer(event trigger.RecognitionEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ended {
		return ErrNoSession
	}

	select {
	case <-s.done:
		return ErrNoSession
	case s.events <- event:
		return nil
	default:
		return ErrSessionBusy
	}
}

// send queues event, waiting for room.
func (s *feedStream) send(ctx context.Context, event trigger.RecognitionEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ended {
		return ErrNoSession
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrNoSession
	case s.events <- event:
		return nil
	}
}

// end closes events once.
func (s *feedStream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}

	s.ended = true
	close(s.events)
}

// Unsupported is the engine of a host without speech recognition.
type Unsupported struct{}

// Supported always reports false.
func (Unsupported) Supported() bool {
	return false
}

// Start always fails.
func (Unsupported) Start(context.Context, trigger.RecognitionOptions) (trigger.RecognitionStream, error) {
	return nil, trigger.ErrUnsupportedCapability
}
