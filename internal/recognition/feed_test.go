package recognition

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/trigger"
)

var errTestMic = errors.New("microphone unplugged")

// TestFeedEngine_Session covers feeding, stopping and reopening.
func TestFeedEngine_Session(t *testing.T) {
	t.Parallel()

	e := NewFeedEngine()
	require.True(t, e.Supported())
	require.ErrorIs(t, e.Feed("help me"), ErrNoSession)

	stream, err := e.Start(context.Background(), trigger.RecognitionOptions{Locale: "en-IN"})
	require.NoError(t, err)

	_, err = e.Start(context.Background(), trigger.RecognitionOptions{})
	require.ErrorIs(t, err, errAlreadyListening)

	require.NoError(t, e.Feed("  hello  "))
	require.NoError(t, e.Feed("   "))
	require.NoError(t, e.Fail(errTestMic))

	event := <-stream.Events()
	require.Equal(t, "hello", event.Transcript)

	event = <-stream.Events()
	require.ErrorIs(t, event.Err, errTestMic)

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())
	require.ErrorIs(t, e.Feed("help me"), ErrNoSession)

	_, err = e.Start(context.Background(), trigger.RecognitionOptions{})
	require.NoError(t, err)
}

// TestFeedEngine_Backpressure drops utterances when the session is not draining.
func TestFeedEngine_Backpressure(t *testing.T) {
	t.Parallel()

	e := NewFeedEngine()

	_, err := e.Start(context.Background(), trigger.RecognitionOptions{})
	require.NoError(t, err)

	for range defaultBuffer {
		require.NoError(t, e.Feed("blah"))
	}

	require.ErrorIs(t, e.Feed("blah"), ErrSessionBusy)
}

// TestFeedEngine_EndDeliversQueued closes the stream after the queued utterances.
func TestFeedEngine_EndDeliversQueued(t *testing.T) {
	t.Parallel()

	e := NewFeedEngine()
	require.ErrorIs(t, e.End(), ErrNoSession)

	stream, err := e.Start(context.Background(), trigger.RecognitionOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Feed("please help me now"))
	require.NoError(t, e.End())
	require.NoError(t, e.End())
	require.ErrorIs(t, e.Feed("again"), ErrNoSession)

	event, ok := <-stream.Events()
	require.True(t, ok)
	require.Equal(t, "please help me now", event.Transcript)

	_, ok = <-stream.Events()
	require.False(t, ok)
}

// TestFeedEngine_FeedWaitBlocksForRoom queues past the buffer once the session drains.
func TestFeedEngine_FeedWaitBlocksForRoom(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := NewFeedEngine()

		stream, err := e.Start(context.Background(), trigger.RecognitionOptions{})
		require.NoError(t, err)

		for range defaultBuffer {
			require.NoError(t, e.FeedWait(context.Background(), "blah"))
		}

		queued := make(chan error, 1)

		go func() {
			queued <- e.FeedWait(context.Background(), "help me")
		}()

		synctest.Wait()
		require.Empty(t, queued)

		<-stream.Events()
		require.NoError(t, <-queued)

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			queued <- e.FeedWait(ctx, "help me")
		}()

		synctest.Wait()
		cancel()
		require.ErrorIs(t, <-queued, context.Canceled)

		go func() {
			queued <- e.FeedWait(context.Background(), "help me")
		}()

		synctest.Wait()
		require.NoError(t, stream.Stop())
		require.ErrorIs(t, <-queued, ErrNoSession)
	})
}

// TestUnsupported reports no capability.
func TestUnsupported(t *testing.T) {
	t.Parallel()

	var e Unsupported

	require.False(t, e.Supported())

	_, err := e.Start(context.Background(), trigger.RecognitionOptions{})
	require.ErrorIs(t, err, trigger.ErrUnsupportedCapability)
}

// sender counts alerts for the end-to-end check below.
type sender struct {
	requests []*alert.AlertRequest
}

// SubmitAlert records req.
func (s *sender) SubmitAlert(_ context.Context, _ string, req *alert.AlertRequest) (*alert.Ack, error) {
	s.requests = append(s.requests, req)

	return new(alert.Ack), nil
}

// location is a fixed position.
type location struct{}

// Current returns Bengaluru.
func (location) Current() *alert.LocationSample {
	return &alert.LocationSample{Latitude: 12.97, Longitude: 77.59}
}

// TestFeedEngine_DrivesVoiceTrigger wires the engine into a controller.
func TestFeedEngine_DrivesVoiceTrigger(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := NewFeedEngine()
		s := new(sender)
		c := trigger.New(trigger.Options{}, trigger.Deps{Sender: s, Location: location{}, Engine: e})

		require.NoError(t, c.StartVoice(context.Background()))

		require.NoError(t, e.Feed("nothing"))
		synctest.Wait()
		require.Empty(t, s.requests)

		require.NoError(t, e.Feed("Please HELP ME now"))
		synctest.Wait()

		require.Len(t, s.requests, 1)
		require.Equal(t, "voice_sos", s.requests[0].Type)
		require.ErrorIs(t, e.Feed("help me"), ErrNoSession)
		require.Equal(t, trigger.VoiceStopped, c.Voice().State())
	})
}
