package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/trigger"
)

var (
	// ErrAlertNotSent is returned when a one-shot alert did not reach the API.
	ErrAlertNotSent = errors.New("alert was not sent")
	// ErrCancelled is returned when the trigger was stopped before it fired.
	ErrCancelled = errors.New("cancelled before an alert was sent")
)

// PanicOptions controls a one-shot panic alert.
type PanicOptions struct {
	Options

	// Hold releases the button after this long. Zero keeps holding until the alert fires.
	Hold time.Duration
	// Latitude and Longitude set the position when HasLocation is true.
	Latitude, Longitude float64
	// HasLocation reports whether Latitude and Longitude were given.
	HasLocation bool
}

// Panic holds the panic button and reports the alert outcome. Cancelling ctx
// before the hold completes releases the button.
func Panic(ctx context.Context, opts *PanicOptions) error {
	ctx = logger.WithName(ctx, "sos-panic")

	return oneShot(ctx, &opts.Options, alert.KindPanic, opts.Hold, func(rt *Runtime, out io.Writer) error {
		if opts.HasLocation {
			if err := rt.Tracker.Set(opts.Latitude, opts.Longitude); err != nil {
				return err
			}
		}

		if !rt.Controller.PressPanic(ctx) {
			return fmt.Errorf("press panic button: %w", trigger.ErrBusy)
		}

		_, _ = fmt.Fprintf(out, "Holding panic button for %s, interrupt to cancel\n", rt.Config.HoldDelay)

		return nil
	}, func(rt *Runtime) bool {
		return rt.Controller.ReleasePanic()
	})
}

// Voice listens for the activation phrase in the lines read from opts.In and
// reports the alert outcome. End of input ends the recognition stream: lines
// already read are still matched.
func Voice(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sos-voice")

	return oneShot(ctx, opts, alert.KindVoice, 0, func(rt *Runtime, out io.Writer) error {
		if rt.Feed == nil {
			return errNoFeed
		}

		if err := rt.Controller.StartVoice(ctx); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "Listening for %q or %q, one utterance per line\n",
			rt.Settings.Settings().ActivationPhrase, trigger.FallbackPhrase)

		in, _ := opts.streams()

		go func() {
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				if err := rt.Feed.FeedWait(ctx, scanner.Text()); err != nil {
					// Matched, stopped or cancelled.
					return
				}
			}

			if err := rt.Feed.End(); err != nil {
				logger.DebugKV(ctx, "Recognition already closed", "error", err)
			}
		}()

		return nil
	}, func(rt *Runtime) bool {
		if rt.Controller.Voice().State() != trigger.VoiceListening {
			return false
		}

		rt.Controller.StopVoice(ctx)

		return true
	})
}

// FakeCall shows the fake incoming call until it times out, a line is read
// from opts.In or ctx is cancelled.
func FakeCall(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sos-fake-call")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	in, out := opts.streams()

	var (
		rt    *Runtime
		once  sync.Once
		ended = make(chan struct{})
	)

	sink := trigger.NotifierFunc(func(_ context.Context, notice trigger.Notice) {
		if notice.Kind == alert.KindDecoy && !rt.Controller.Decoy().State().Active {
			once.Do(func() { close(ended) })
		}
	})

	rt, err = Open(ctx, cfg, &writerNotifier{out: out}, sink)
	if err != nil {
		return err
	}

	defer rt.Close(ctx)

	if _, shown := rt.Controller.ShowDecoy(); !shown {
		return nil
	}

	go func() {
		if bufio.NewScanner(in).Scan() {
			rt.Controller.DismissDecoy()
		}
	}()

	select {
	case <-ended:
	case <-ctx.Done():
		rt.Controller.DismissDecoy()
		<-ended
	}

	return nil
}

// oneShot opens a runtime, starts one trigger and waits for its first notice.
// When ctx is cancelled or hold elapses before the notice arrives, abort is
// called; if it reports that the trigger was stopped before firing,
// ErrCancelled is returned. A recognition stream that ends without a match
// also yields ErrCancelled.
func oneShot(
	ctx context.Context,
	opts *Options,
	kind alert.TriggerKind,
	hold time.Duration,
	start func(rt *Runtime, out io.Writer) error,
	abort func(rt *Runtime) bool,
) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	_, out := opts.streams()

	outcome := make(chan trigger.Notice, 1)
	sink := trigger.NotifierFunc(func(_ context.Context, notice trigger.Notice) {
		if notice.Kind != kind {
			return
		}

		select {
		case outcome <- notice:
		default:
		}
	})

	rt, err := Open(ctx, cfg, &writerNotifier{out: out}, sink)
	if err != nil {
		return err
	}

	defer rt.Close(ctx)

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()

	if hold > 0 {
		waitCtx, stop = context.WithTimeout(waitCtx, hold)
		defer stop()
	}

	if err = start(rt, out); err != nil {
		return err
	}

	var notice trigger.Notice

	select {
	case notice = <-outcome:
	case <-waitCtx.Done():
		if abort(rt) {
			return ErrCancelled
		}

		notice = <-outcome
	}

	if errors.Is(notice.Err, trigger.ErrRecognitionEnded) {
		return ErrCancelled
	}

	if notice.Level != trigger.LevelInfo {
		return fmt.Errorf("%w: %s", ErrAlertNotSent, notice.Text)
	}

	return nil
}
