package cmd

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-button/internal/service/controller"
)

var (
	// holdFor releases the panic button early when positive.
	holdFor time.Duration

	// errCoordinates is returned when panic gets a single coordinate.
	errCoordinates = errors.New("expected both latitude and longitude")

	// panicCmd sends a single panic alert.
	panicCmd = &cobra.Command{
		Use:   "panic [latitude longitude]",
		Short: "Hold the panic button until the alert is sent.",
		Long: `Presses the panic button and keeps holding it. After the hold delay the alert
is sent once with the current location. Interrupting before the delay, or a
--hold shorter than the delay, releases the button and cancels the alert.

Coordinates given as arguments replace the configured location source;
put -- before negative values, e.g. sos-button panic -- -33.86 151.21.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := &controller.PanicOptions{
				Options: baseOptions(cmd),
				Hold:    holdFor,
			}

			switch len(args) {
			case 0:
			case 2:
				lat, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return err
				}

				lng, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return err
				}

				options.Latitude, options.Longitude, options.HasLocation = lat, lng, true
			default:
				return errCoordinates
			}

			return controller.Panic(ctx, options)
		},
	}

	// voiceCmd listens to stdin lines as utterances.
	voiceCmd = &cobra.Command{
		Use:   "voice",
		Short: "Listen for the activation phrase and send a voice SOS.",
		Long: `Starts voice listening. Each line read from standard input is one recognized
utterance. The first utterance containing the activation phrase or
"emergency" sends the alert; end of input stops listening.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := baseOptions(cmd)

			return controller.Voice(ctx, &options)
		},
	}

	// fakeCallCmd shows the decoy call.
	fakeCallCmd = &cobra.Command{
		Use:   "fake-call",
		Short: "Show a fake incoming call.",
		Long:  "Shows a fake incoming call until it times out or Enter is pressed. No alert is sent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := baseOptions(cmd)

			return controller.FakeCall(ctx, &options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	panicCmd.Flags().DurationVar(&holdFor, "hold", 0, "release the button after this long (0 holds until the alert fires)")

	rootCmd.AddCommand(panicCmd, voiceCmd, fakeCallCmd)
}
