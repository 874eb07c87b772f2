package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/sos-button/internal/repository/history"
	"github.com/oshokin/sos-button/internal/trigger"
)

// holdGrace is added to the hold delay by a bare "hold" so the timer fires first.
const holdGrace = 250 * time.Millisecond

const consoleHelp = `commands:
  press                 press and keep holding the panic button
  release               release the panic button
  hold [duration]       press, wait (default: hold delay), release
  listen                start voice listening
  say <text>            speak an utterance to the recognition engine
  stop                  stop voice listening
  call                  show the fake incoming call
  dismiss               dismiss the fake call
  location <lat> <lng>  set the current position ("location clear" forgets it)
  status                print every trigger state
  help                  print this help
  quit                  stop and exit`

var (
	// errQuit is returned by Execute for quit and exit.
	errQuit = errors.New("quit")
	// errUnknownCommand is returned for unrecognized input.
	errUnknownCommand = errors.New("unknown command, type help")
	// errUsage is returned for malformed arguments.
	errUsage = errors.New("usage")
	// errNoFeed is returned by say when voice is disabled.
	errNoFeed = errors.New("speech recognition is disabled in the configuration")
)

// Console interprets text commands against a runtime.
type Console struct {
	rt  *Runtime
	out io.Writer
}

// NewConsole creates a console writing replies to out.
func NewConsole(rt *Runtime, out io.Writer) *Console {
	return &Console{rt: rt, out: out}
}

// Execute runs one command line. It returns errQuit for quit.
//
//nolint:cyclop // One case per command keeps the console readable.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	ctl := c.rt.Controller

	switch command, args := strings.ToLower(fields[0]), fields[1:]; command {
	case "press":
		c.reply(ctl.PressPanic(ctx), "Holding panic button, release within "+c.rt.Config.HoldDelay.String()+" to cancel",
			"Panic button is not idle")
	case "release":
		c.reply(ctl.ReleasePanic(), "Panic alert cancelled", "Nothing to release")
	case "hold":
		return c.hold(ctx, args)
	case "listen":
		if err := ctl.StartVoice(ctx); err != nil {
			return err
		}

		c.println("Listening for \"" + c.rt.Settings.Settings().ActivationPhrase + "\" or \"" + trigger.FallbackPhrase + "\"")
	case "say":
		if c.rt.Feed == nil {
			return errNoFeed
		}

		return c.rt.Feed.Feed(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
	case "stop":
		ctl.StopVoice(ctx)
		c.println("Voice listening stopped")
	case "call":
		if _, shown := ctl.ShowDecoy(); !shown {
			c.println("A fake call is already on screen")
		}
	case "dismiss":
		if !ctl.DismissDecoy() {
			c.println("No fake call on screen")
		}
	case "location":
		return c.location(args)
	case "status":
		c.status(ctx)
	case "help":
		c.println(consoleHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("%q: %w", command, errUnknownCommand)
	}

	return nil
}

// hold presses, waits and releases.
func (c *Console) hold(ctx context.Context, args []string) error {
	duration := c.rt.Config.HoldDelay + holdGrace

	if len(args) > 0 {
		parsed, err := time.ParseDuration(args[0])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("%w: hold [duration], e.g. hold 1s", errUsage)
		}

		duration = parsed
	}

	if !c.rt.Controller.PressPanic(ctx) {
		c.println("Panic button is not idle")
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	c.reply(c.rt.Controller.ReleasePanic(), "Released early, panic alert cancelled", "Panic alert fired")

	return nil
}

// location sets or clears the manual position.
func (c *Console) location(args []string) error {
	if len(args) == 1 && strings.EqualFold(args[0], "clear") {
		c.rt.Tracker.Clear()
		c.println("Location cleared")

		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("%w: location <lat> <lng>", errUsage)
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: latitude %q", errUsage, args[0])
	}

	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: longitude %q", errUsage, args[1])
	}

	if err = c.rt.Tracker.Set(lat, lng); err != nil {
		return err
	}

	c.println("Location set to " + c.rt.Tracker.Current().Describe())

	return nil
}

// status prints the controller snapshot, the newest journal entry and the settings sync time.
func (c *Console) status(ctx context.Context) {
	status := c.rt.Controller.Status()

	decoy := "none"
	if status.Decoy.Active {
		decoy = "call from " + status.Decoy.Caller
	}

	synced := "never"
	if at := c.rt.Settings.SyncedAt(); !at.IsZero() {
		synced = at.Local().Format(time.DateTime)
	}

	c.println(fmt.Sprintf("panic: %s\nvoice: %s\ndecoy: %s\nlocation: %s\nin flight: %d\nlast alert: %s\nsettings synced: %s",
		status.Panic, status.Voice, decoy, status.Location.Describe(), status.InFlight, c.lastAlert(ctx), synced))
}

// lastAlert describes the newest journaled attempt.
func (c *Console) lastAlert(ctx context.Context) string {
	if c.rt.journal == nil {
		return "journal unavailable"
	}

	last, err := c.rt.journal.Last(ctx)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return "none"
		}

		return err.Error()
	}

	return fmt.Sprintf("%s %s at %s", last.Kind, last.Outcome, last.At.Local().Format(time.DateTime))
}

func (c *Console) reply(ok bool, yes, no string) {
	if ok {
		c.println(yes)
		return
	}

	c.println(no)
}

func (c *Console) println(text string) {
	_, _ = fmt.Fprintln(c.out, text)
}
