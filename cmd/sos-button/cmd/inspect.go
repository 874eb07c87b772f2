package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-button/internal/api/rest/safety"
	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/service/controller"
)

var (
	// historyLimit caps the history listing.
	historyLimit int
	// alertsLimit caps the server alert listing.
	alertsLimit int
	// region selects the emergency number table.
	region string
	// force overwrites an existing configuration file.
	force bool

	// historyCmd lists the local alert journal.
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recent alert attempts from the local journal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return controller.History(ctx, &controller.HistoryOptions{
				Options: baseOptions(cmd),
				Limit:   historyLimit,
			})
		},
	}

	// numbersCmd prints emergency numbers.
	numbersCmd = &cobra.Command{
		Use:   "numbers",
		Short: "Print emergency service numbers.",
		Long:  "Prints emergency service numbers from the safety API, or the built-in India list when it is unreachable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return controller.Numbers(ctx, &controller.NumbersOptions{
				Options: baseOptions(cmd),
				Region:  region,
			})
		},
	}

	// contactsCmd lists the server-side emergency contacts.
	contactsCmd = &cobra.Command{
		Use:   "contacts",
		Short: "List the emergency contacts alerts are sent to.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := baseOptions(cmd)

			return controller.Contacts(ctx, &options)
		},
	}

	// alertsCmd lists the alerts stored by the server.
	alertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "List the alerts the safety API has recorded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return controller.RemoteAlerts(ctx, &controller.RemoteAlertsOptions{
				Options: baseOptions(cmd),
				Limit:   alertsLimit,
			})
		},
	}

	// pingCmd checks the safety API.
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check that the safety API is reachable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := baseOptions(cmd)

			return controller.Ping(ctx, &options)
		},
	}

	// configCmd groups configuration helpers.
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file.",
	}

	// configInitCmd writes the default configuration.
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if err := config.Init(path, force); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", path)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of attempts to list")
	alertsCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 20, "number of alerts to list, 0 for all")
	numbersCmd.Flags().StringVarP(&region, "region", "r", safety.DefaultRegion, "emergency number region")
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(historyCmd, contactsCmd, alertsCmd, numbersCmd, pingCmd, configCmd)
}
