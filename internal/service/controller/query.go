package controller

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oshokin/sos-button/internal/api/rest/safety"
	"github.com/oshokin/sos-button/internal/config"
	"github.com/oshokin/sos-button/internal/domain/alert"
	"github.com/oshokin/sos-button/internal/logger"
	"github.com/oshokin/sos-button/internal/repository/history"
)

// HistoryOptions controls the journal listing.
type HistoryOptions struct {
	Options

	// Limit caps the number of attempts printed.
	Limit int
}

// History prints the newest dispatch attempts from the local journal.
func History(ctx context.Context, opts *HistoryOptions) error {
	ctx = logger.WithName(ctx, "sos-history")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.HistoryDB == "" {
		return fmt.Errorf("alert journal is disabled: set history_db in %s", config.DefaultConfigFilename)
	}

	journal, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}

	defer func() {
		_ = journal.Close()
	}()

	attempts, err := journal.List(ctx, opts.Limit)
	if err != nil {
		return err
	}

	_, out := opts.streams()

	if len(attempts) == 0 {
		_, _ = fmt.Fprintln(out, "No alerts recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tKIND\tOUTCOME\tLOCATION\tDETAIL")

	for _, attempt := range attempts {
		detail := attempt.AlertID
		if attempt.Error != "" {
			detail = attempt.Error
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			attempt.At.Local().Format(time.DateTime),
			attempt.Kind,
			attempt.Outcome,
			attempt.Location.Describe(),
			detail)
	}

	return w.Flush()
}

// NumbersOptions controls the emergency numbers listing.
type NumbersOptions struct {
	Options

	// Region selects the number table, "india" when empty.
	Region string
}

// Numbers prints the emergency numbers for a region. When the API cannot
// answer for the default region the built-in table is printed instead, under
// a line saying so. Other regions have no built-in table.
func Numbers(ctx context.Context, opts *NumbersOptions) error {
	ctx = logger.WithName(ctx, "sos-numbers")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client, err := apiClient(cfg)
	if err != nil {
		return err
	}

	region := strings.ToLower(strings.TrimSpace(opts.Region))
	if region == "" {
		region = safety.DefaultRegion
	}

	_, out := opts.streams()

	numbers, err := client.EmergencyNumbers(ctx, region)
	if err != nil {
		if region != safety.DefaultRegion {
			return fmt.Errorf("emergency numbers for %s: %w", region, err)
		}

		logger.WarnKV(ctx, "Emergency numbers unavailable, using built-in list", "error", err)

		numbers = alert.DefaultEmergencyNumbers()

		_, _ = fmt.Fprintf(out, "Built-in %s numbers, the safety API did not answer:\n", region)
	}

	services := make([]string, 0, len(numbers))
	for service := range numbers {
		services = append(services, service)
	}

	slices.Sort(services)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, service := range services {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", service, numbers[service])
	}

	return w.Flush()
}

// Ping checks that the safety API is reachable.
func Ping(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sos-ping")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client, err := apiClient(cfg)
	if err != nil {
		return err
	}

	started := time.Now()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", cfg.APIURL, err)
	}

	_, out := opts.streams()
	_, _ = fmt.Fprintf(out, "%s is %s (%s)\n", cfg.APIURL, health.Status, time.Since(started).Round(time.Millisecond))

	logger.DebugKV(ctx, "Ping succeeded", "server_time", health.Timestamp)

	return nil
}

// Contacts prints the emergency contacts the server notifies on every alert.
func Contacts(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sos-contacts")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client, err := apiClient(cfg)
	if err != nil {
		return err
	}

	contacts, err := client.Contacts(ctx)
	if err != nil {
		return err
	}

	_, out := opts.streams()

	if len(contacts) == 0 {
		_, _ = fmt.Fprintln(out, "No emergency contacts: alerts will reach nobody")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPHONE\tRELATIONSHIP\tPRIMARY")

	for _, contact := range contacts {
		primary := ""
		if contact.IsPrimary {
			primary = "yes"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", contact.Name, contact.PhoneNumber, contact.Relationship, primary)
	}

	return w.Flush()
}

// RemoteAlertsOptions controls the server alert listing.
type RemoteAlertsOptions struct {
	Options

	// Limit caps the number of alerts printed. Zero prints all.
	Limit int
}

// RemoteAlerts prints the alerts the server recorded for the user, newest first.
func RemoteAlerts(ctx context.Context, opts *RemoteAlertsOptions) error {
	ctx = logger.WithName(ctx, "sos-alerts")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	client, err := apiClient(cfg)
	if err != nil {
		return err
	}

	alerts, err := client.Alerts(ctx)
	if err != nil {
		return err
	}

	if opts.Limit > 0 && len(alerts) > opts.Limit {
		alerts = alerts[:opts.Limit]
	}

	_, out := opts.streams()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "No alerts on the server")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CREATED\tTYPE\tSTATUS\tCONTACTS\tLOCATION")

	for _, remote := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			remote.CreatedAt, remote.Type, remote.Status, len(remote.ContactsNotified), remote.Location.Describe())
	}

	return w.Flush()
}

// apiClient builds a safety API client from cfg.
func apiClient(cfg *config.Config) (*safety.Client, error) {
	client, err := safety.New(cfg.APIURL, safety.WithCallTimeout(cfg.Timeout), safety.WithToken(cfg.APIToken))
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	return client, nil
}
