package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-button/internal/trigger"
)

// Config holds every tunable of the emergency trigger controller and its collaborators.
type Config struct {
	// APIURL is the base URL of the remote safety API.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	// APIToken is an opaque bearer token attached to API calls.
	APIToken string `mapstructure:"api_token" yaml:"api_token,omitempty"`
	// Timeout bounds every API call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// HoldDelay is how long the panic button must be held before it fires.
	HoldDelay time.Duration `mapstructure:"hold_delay" yaml:"hold_delay"`
	// DecoyDuration is how long the fake call stays on screen unless dismissed.
	DecoyDuration time.Duration `mapstructure:"decoy_duration" yaml:"decoy_duration"`
	// DecoyCaller is the name shown on the fake incoming call.
	DecoyCaller string `mapstructure:"decoy_caller" yaml:"decoy_caller"`
	// ActivationPhrase is the default voice phrase until settings are synced.
	ActivationPhrase string `mapstructure:"activation_phrase" yaml:"activation_phrase"`
	// EmergencyMessage is the default panic message template until settings are synced.
	EmergencyMessage string `mapstructure:"emergency_message" yaml:"emergency_message"`
	// RecognitionLocale is the locale requested from the recognition engine.
	RecognitionLocale string `mapstructure:"recognition_locale" yaml:"recognition_locale"`
	// VoiceEnabled reports whether this host offers speech recognition.
	VoiceEnabled bool `mapstructure:"voice_enabled" yaml:"voice_enabled"`
	// LocationFile is the YAML fix file maintained by a GPS daemon. Empty means manual location only.
	LocationFile string `mapstructure:"location_file" yaml:"location_file,omitempty"`
	// LocationRefresh is the cron spec for re-reading LocationFile.
	LocationRefresh string `mapstructure:"location_refresh" yaml:"location_refresh"`
	// SettingsSyncInterval is how often settings are pulled from the API. Zero disables sync.
	SettingsSyncInterval time.Duration `mapstructure:"settings_sync_interval" yaml:"settings_sync_interval"`
	// HistoryDB is the SQLite file of the local alert journal. Empty disables the journal.
	HistoryDB string `mapstructure:"history_db" yaml:"history_db,omitempty"`
	// ControlAddress is the listen address of the local control surface. Empty disables it.
	ControlAddress string `mapstructure:"control_address" yaml:"control_address,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "sos-button-settings.yaml"

	// DefaultHistoryFilename is the default SQLite journal filename.
	DefaultHistoryFilename = "sos-button-history.db"

	// DefaultAPIURL points at a locally running safety API.
	DefaultAPIURL = "http://127.0.0.1:8001"

	// DefaultTimeout is the default duration for API calls.
	DefaultTimeout = 10 * time.Second

	// DefaultHoldDelay is the panic confirmation delay.
	DefaultHoldDelay = trigger.DefaultHoldDelay

	// DefaultDecoyDuration is how long a fake call is displayed.
	DefaultDecoyDuration = trigger.DefaultDecoyDuration

	// DefaultDecoyCaller is the caller name on the fake call.
	DefaultDecoyCaller = trigger.DefaultDecoyCaller

	// DefaultActivationPhrase is the voice phrase used until settings say otherwise.
	DefaultActivationPhrase = trigger.DefaultActivationPhrase

	// DefaultEmergencyMessage is the panic message template; [LOCATION] is substituted.
	DefaultEmergencyMessage = "I need help! My current location is: [LOCATION]. Please check on me immediately."

	// DefaultRecognitionLocale is the recognition locale.
	DefaultRecognitionLocale = trigger.DefaultLocale

	// DefaultLocationRefresh re-reads the location file twice a minute.
	DefaultLocationRefresh = "@every 30s"

	// DefaultSettingsSyncInterval is the settings pull interval.
	DefaultSettingsSyncInterval = 5 * time.Minute

	// DefaultControlAddress keeps the control surface on loopback.
	DefaultControlAddress = "127.0.0.1:8765"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// envPrefix prefixes environment overrides, e.g. SOS_API_URL.
	envPrefix = "SOS"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAPIURLRequired is returned when the API base URL is missing.
	errAPIURLRequired = errors.New("api url must be provided")
	// errConfigExists is returned by Init when the file is already there.
	errConfigExists = errors.New("configuration file already exists")
	// errNegativeDuration is returned for negative timing settings.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Default returns a configuration with every field at its default value.
func Default() *Config {
	return &Config{
		APIURL:               DefaultAPIURL,
		Timeout:              DefaultTimeout,
		HoldDelay:            DefaultHoldDelay,
		DecoyDuration:        DefaultDecoyDuration,
		DecoyCaller:          DefaultDecoyCaller,
		ActivationPhrase:     DefaultActivationPhrase,
		EmergencyMessage:     DefaultEmergencyMessage,
		RecognitionLocale:    DefaultRecognitionLocale,
		VoiceEnabled:         true,
		LocationRefresh:      DefaultLocationRefresh,
		SettingsSyncInterval: DefaultSettingsSyncInterval,
		HistoryDB:            DefaultHistoryFilename,
		ControlAddress:       DefaultControlAddress,
	}
}

// Load reads configuration from the provided path, applies SOS_* environment
// overrides and validates the result. A missing file at the default path is
// not an error: defaults and environment are used instead.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Defaults register every key so AutomaticEnv applies during Unmarshal.
	setDefaults(v, Default())

	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold the API token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Init writes the default configuration to path. An existing file is kept
// unless force is set.
func Init(path string, force bool) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, errConfigExists)
		}
	}

	return Save(path, Default())
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for zero values.
//
//nolint:cyclop // One branch per field keeps the rules readable.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.APIURL == "" {
		return errAPIURLRequired
	}

	if _, err := url.ParseRequestURI(settings.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"timeout":                settings.Timeout,
		"hold_delay":             settings.HoldDelay,
		"decoy_duration":         settings.DecoyDuration,
		"settings_sync_interval": settings.SettingsSyncInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s: %w", name, errNegativeDuration)
		}
	}

	if settings.Timeout == 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.HoldDelay == 0 {
		settings.HoldDelay = DefaultHoldDelay
	}

	if settings.DecoyDuration == 0 {
		settings.DecoyDuration = DefaultDecoyDuration
	}

	if settings.DecoyCaller == "" {
		settings.DecoyCaller = DefaultDecoyCaller
	}

	if strings.TrimSpace(settings.ActivationPhrase) == "" {
		settings.ActivationPhrase = DefaultActivationPhrase
	}

	if settings.RecognitionLocale == "" {
		settings.RecognitionLocale = DefaultRecognitionLocale
	}

	if settings.LocationRefresh == "" {
		settings.LocationRefresh = DefaultLocationRefresh
	}

	if _, err := cron.ParseStandard(settings.LocationRefresh); err != nil {
		return fmt.Errorf("invalid location refresh schedule: %w", err)
	}

	if settings.ControlAddress == "" {
		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	return nil
}

// setDefaults registers every field of def under its mapstructure key.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("api_url", def.APIURL)
	v.SetDefault("api_token", def.APIToken)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("hold_delay", def.HoldDelay)
	v.SetDefault("decoy_duration", def.DecoyDuration)
	v.SetDefault("decoy_caller", def.DecoyCaller)
	v.SetDefault("activation_phrase", def.ActivationPhrase)
	v.SetDefault("emergency_message", def.EmergencyMessage)
	v.SetDefault("recognition_locale", def.RecognitionLocale)
	v.SetDefault("voice_enabled", def.VoiceEnabled)
	v.SetDefault("location_file", def.LocationFile)
	v.SetDefault("location_refresh", def.LocationRefresh)
	v.SetDefault("settings_sync_interval", def.SettingsSyncInterval)
	v.SetDefault("history_db", def.HistoryDB)
	v.SetDefault("control_address", def.ControlAddress)
}
