package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for wlog, stored in ~/.wlog/config.yaml.
// Every key can be overridden from the environment with the WLOG_ prefix,
// e.g. WLOG_STORAGE_PATH or WLOG_OUTLOOK_TIMEZONE.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Outlook OutlookConfig `mapstructure:"outlook"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	// Path is the SQLite file. A leading ~ is expanded.
	Path string `mapstructure:"path"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every command when set.
	Textfile string `mapstructure:"textfile"`
}

// OutlookConfig holds Microsoft Graph / Outlook calendar sync settings.
type OutlookConfig struct {
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `mapstructure:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `mapstructure:"client_id"`
	// DefaultProject is the project name assigned to imported Outlook events.
	DefaultProject string `mapstructure:"default_project"`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `mapstructure:"timezone"`
}

const (
	// DefaultStoragePath is the database file used when none is configured.
	DefaultStoragePath = "~/.wlog/worklog.db"
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "console"
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration. Replace with your own registered app ID for
	// organisational or production deployments.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultProject is the project name used for imported meetings.
	DefaultProject = "Meetings"

	envPrefix = "WLOG"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", DefaultStoragePath)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("outlook.tenant_id", DefaultTenantID)
	v.SetDefault("outlook.client_id", DefaultClientID)
	v.SetDefault("outlook.default_project", DefaultProject)
	v.SetDefault("outlook.timezone", "")
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# wlog configuration - ~/.wlog/config.yaml
#
# All settings are optional; the defaults below work out of the box.
# Any key can also be set from the environment, e.g. WLOG_LOG_LEVEL=debug.

storage:
  # SQLite database holding entries, tasks and projects.
  path: ~/.wlog/worklog.db

log:
  # debug, info, warn or error. Logs go to stderr.
  level: warn
  # console or json
  format: console

metrics:
  # Write Prometheus metrics to this file after every command
  # (for the node_exporter textfile collector). Empty disables it.
  textfile: ""

# Microsoft Graph / Outlook calendar sync
outlook:
  # Azure AD tenant ID.
  #   "common" - personal Microsoft accounts and any organisation (default)
  #   your organisation's tenant GUID
  tenant_id: common

  # Azure application (client) ID used for the OAuth2 device code flow.
  # The built-in value is the public Azure CLI app, no app registration needed.
  client_id: 04b07795-8542-4c4a-95af-30b2c573d5ab

  # Project that imported calendar events are logged under.
  # Can be overridden per sync with: wlog outlook sync --project <name>
  default_project: Meetings

  # IANA timezone for calendar event times, e.g. "Europe/Berlin".
  # Leave empty to use UTC.
  timezone: ""
`

// DefaultPath returns ~/.wlog/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".wlog", "config.yaml"), nil
}

// Load reads the config file at path (DefaultPath when empty), creating it
// with annotated defaults on first run. A .env file in the working directory
// and WLOG_* environment variables override file values. Empty values fall
// back to the built-in defaults.
func Load(path string) (Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return defaultConfig(), err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	}
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return defaultConfig(), fmt.Errorf("decoding config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.fillDefaults()
	return cfg
}

// fillDefaults replaces zero values so a partially filled file still yields a
// usable Config.
func (c *Config) fillDefaults() {
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Outlook.TenantID == "" {
		c.Outlook.TenantID = DefaultTenantID
	}
	if c.Outlook.ClientID == "" {
		c.Outlook.ClientID = DefaultClientID
	}
	if c.Outlook.DefaultProject == "" {
		c.Outlook.DefaultProject = DefaultProject
	}
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
