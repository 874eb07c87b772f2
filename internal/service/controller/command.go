package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/term"

	"github.com/oshokin/sos-button/internal/api/http/control"
	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/logger"
)

// prompt is printed before each console line on interactive terminals.
const prompt = "sos> "

// Options controls the sos-button process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ControlAddress overrides the control surface listen address when not empty.
	ControlAddress string
	// NoControl disables the control surface regardless of configuration.
	NoControl bool
	// In is the console input, os.Stdin when nil.
	In io.Reader
	// Out receives console replies and notices, os.Stdout when nil.
	Out io.Writer
}

// Run starts the controller with its console and control surface and blocks
// until ctx is cancelled, the console reads quit or the input ends.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-button")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.ControlAddress != "" {
		cfg.ControlAddress = opts.ControlAddress
	}

	if opts.NoControl {
		cfg.ControlAddress = ""
	}

	in, out := opts.streams()

	rt, err := Open(ctx, cfg, &writerNotifier{out: out})
	if err != nil {
		return err
	}

	defer rt.Close(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var surface *controlSurface

	if cfg.ControlAddress != "" {
		if surface, err = startControl(ctx, rt, cfg.ControlAddress); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Emergency trigger controller started",
		"api_url", cfg.APIURL,
		"control_address", cfg.ControlAddress,
		"voice_enabled", cfg.VoiceEnabled)

	err = runConsole(ctx, NewConsole(rt, out), in, out, surface.Done())

	cancel()

	if serveErr := surface.Wait(); serveErr != nil {
		err = serveErr
	}

	logger.Info(ctx, "Emergency trigger controller stopped")

	return err
}

// controlSurface is a control server running in the background.
type controlSurface struct {
	// done is closed once the server stopped; err is its result.
	done chan struct{}
	err  error
}

// startControl binds the control surface and serves it until ctx is cancelled.
func startControl(ctx context.Context, rt *Runtime, address string) (*controlSurface, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	gin.SetMode(gin.ReleaseMode)

	server := control.NewServer(rt.Controller, rt.Notices)
	surface := &controlSurface{done: make(chan struct{})}

	go func() {
		defer close(surface.done)
		surface.err = server.Serve(ctx, listener)
	}()

	return surface, nil
}

// Done is closed when the server stops. A nil surface never stops.
func (c *controlSurface) Done() <-chan struct{} {
	if c == nil {
		return nil
	}

	return c.done
}

// Wait blocks until the server stopped and returns its error.
func (c *controlSurface) Wait() error {
	if c == nil {
		return nil
	}

	<-c.done

	return c.err
}

// runConsole feeds input lines to the console until quit, end of input,
// cancellation or the control surface stopping.
func runConsole(ctx context.Context, console *Console, in io.Reader, out io.Writer, stopped <-chan struct{}) error {
	interactive := isTerminal(in)
	lines := make(chan string)

	// The reader goroutine may stay blocked on input after return; the process exits.
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	if interactive {
		_, _ = fmt.Fprintln(out, consoleHelp)
	}

	for {
		if interactive {
			_, _ = fmt.Fprint(out, prompt)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-stopped:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			err := console.Execute(ctx, line)

			switch {
			case err == nil:
			case errors.Is(err, errQuit):
				return nil
			default:
				_, _ = fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

// isTerminal reports whether in is an interactive terminal.
func isTerminal(in io.Reader) bool {
	file, ok := in.(*os.File)

	return ok && term.IsTerminal(int(file.Fd())) //nolint:gosec // File descriptors fit in int.
}

// streams returns the console streams, defaulting to the process stdio.
func (o *Options) streams() (io.Reader, io.Writer) {
	in, out := o.In, o.Out

	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	return in, out
}
