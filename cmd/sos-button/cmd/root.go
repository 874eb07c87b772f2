package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/service/controller"
	"github.com/oshokin/sos-button/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to stderr.
	logLevel string
	// controlAddress overrides the control surface listen address.
	controlAddress string
	// noControl disables the control surface.
	noControl bool

	// rootCmd represents the base command: the interactive emergency trigger controller.
	rootCmd = &cobra.Command{
		Use:   "sos-button",
		Short: "Personal safety emergency triggers: panic button, voice SOS and fake call.",
		Long: `Runs the emergency trigger controller of a personal safety app.

The panic button fires after being held for the hold delay (3s by default),
voice SOS fires when the activation phrase or "emergency" is heard, and the
fake call shows an incoming call from a trusted contact for 10s. Alerts carry
the last known location and are sent once to the safety API.

Without a subcommand the controller runs with an interactive console and a
local HTTP control surface (see "run").`,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
		RunE:              runController,
	}

	// runCmd starts the controller explicitly.
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller with a console and the local control surface.",
		Long: `Runs the controller until interrupted or "quit" is typed.

Console commands: press, release, hold [duration], listen, say <text>, stop,
call, dismiss, location <lat> <lng>, status, help, quit.

The control surface (control_address, 127.0.0.1:8765 by default) serves
GET /status, GET /notices and POST /panic/press, /panic/release,
/voice/start, /voice/stop, /decoy/show, /decoy/dismiss.`,
		Args: cobra.NoArgs,
		RunE: runController,
	}
)

// Execute runs the sos-button CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// applyLogLevel sets the global logger level from the --log-level flag.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

func runController(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	options := &controller.Options{
		ConfigPath:     configPath,
		ControlAddress: controlAddress,
		NoControl:      noControl,
		In:             cmd.InOrStdin(),
		Out:            cmd.OutOrStdout(),
	}

	return controller.Run(ctx, options)
}

// baseOptions returns the options shared by every subcommand.
func baseOptions(cmd *cobra.Command) controller.Options {
	return controller.Options{
		ConfigPath: configPath,
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn, error, fatal")

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().StringVarP(&controlAddress, "control-address", "a", "", "control surface listen address override")
		c.Flags().BoolVar(&noControl, "no-control", false, "do not start the control surface")
	}

	rootCmd.AddCommand(runCmd)
}
