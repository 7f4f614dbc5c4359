// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"remindo/internal/notification"
	"remindo/internal/reminder"
)

//go:embed config.sample.yaml
var sampleConfig string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REMINDO"

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Config represents the application configuration
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Reminder     ReminderConfig     `yaml:"reminder" mapstructure:"reminder"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Watch        WatchConfig        `yaml:"watch" mapstructure:"watch"`
	OutputFormat string             `yaml:"output_format" mapstructure:"output_format"`
	NoPrompt     bool               `yaml:"no_prompt" mapstructure:"no_prompt"`

	path string
}

// StoreConfig selects and configures the task store
type StoreConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite store configuration
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL store configuration. The password is never
// written back out.
type PostgresConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"-" mapstructure:"password"`
}

// ReminderConfig holds reminder settings
type ReminderConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	LeadTime      string `yaml:"lead_time" mapstructure:"lead_time"`
	SweepInterval string `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	Snooze        string `yaml:"snooze" mapstructure:"snooze"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
}

// NotificationConfig holds notification channel settings
type NotificationConfig struct {
	OS  OSNotificationConfig  `yaml:"os" mapstructure:"os"`
	Log LogNotificationConfig `yaml:"log" mapstructure:"log"`
}

// OSNotificationConfig holds desktop notification settings
type OSNotificationConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	OnReminder     bool `yaml:"on_reminder" mapstructure:"on_reminder"`
	OnStoreOffline bool `yaml:"on_store_offline" mapstructure:"on_store_offline"`
}

// LogNotificationConfig holds notification log settings
type LogNotificationConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	File    bool `yaml:"file" mapstructure:"file"` // background log file (default: true)
}

// WatchConfig holds database file watcher settings
type WatchConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// defaults are registered with viper so env overrides work for every key.
func defaults() map[string]any {
	return map[string]any{
		"store.driver":                     "sqlite",
		"store.sqlite.path":                "",
		"store.postgres.url":               "",
		"store.postgres.user":              "",
		"store.postgres.password":          "",
		"reminder.enabled":                 true,
		"reminder.lead_time":               reminder.DefaultLeadTime.String(),
		"reminder.sweep_interval":          reminder.DefaultSweepInterval.String(),
		"reminder.snooze":                  reminder.DefaultSnoozeDuration.String(),
		"reminder.workers":                 reminder.DefaultWorkers,
		"notification.os.enabled":          true,
		"notification.os.on_reminder":      true,
		"notification.os.on_store_offline": true,
		"notification.log.enabled":         true,
		"notification.log.path":            "",
		"notification.log.max_size_mb":     5,
		"notification.log.max_backups":     3,
		"notification.log.max_age_days":    28,
		"logging.verbose":                  false,
		"logging.file":                     true,
		"watch.enabled":                    true,
		"output_format":                    "text",
		"no_prompt":                        false,
	}
}

// legacyEnv maps keys to the unprefixed variables older deployments used.
var legacyEnv = map[string]string{
	"store.postgres.url":      "DB_URL",
	"store.postgres.user":     "DB_USERNAME",
	"store.postgres.password": "DB_PASSWORD",
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyPathDefaults()
	return cfg, nil
}

func (c *Config) applyPathDefaults() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = filepath.Join(GetDataDir(), "tasks.db")
	}
	c.Store.SQLite.Path = ExpandPath(c.Store.SQLite.Path)
	if c.Notification.Log.Path == "" {
		c.Notification.Log.Path = filepath.Join(GetCacheDir(), "notifications.log")
	}
	c.Notification.Log.Path = ExpandPath(c.Notification.Log.Path)
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the sample.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.path = configPath
	return cfg, nil
}

// writeSample writes the embedded sample config to path
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format: %q (must be 'text' or 'json')", c.OutputFormat)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required")
		}
	case "postgres":
		if c.Store.Postgres.URL == "" {
			return errors.New("store.postgres.url is required when store.driver is 'postgres'")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver: %q (must be sqlite, postgres or memory)", c.Store.Driver)
	}

	for key, val := range map[string]string{
		"reminder.lead_time":      c.Reminder.LeadTime,
		"reminder.sweep_interval": c.Reminder.SweepInterval,
		"reminder.snooze":         c.Reminder.Snooze,
	} {
		if val == "" {
			continue
		}
		if _, err := reminder.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, val)
		}
	}
	if c.Reminder.Workers < 0 {
		return fmt.Errorf("reminder.workers must not be negative, got %d", c.Reminder.Workers)
	}

	log := c.Notification.Log
	if log.Enabled && log.Path == "" {
		return errors.New("notification.log.path is required when the log channel is enabled")
	}
	if log.MaxSizeMB < 0 || log.MaxBackups < 0 || log.MaxAgeDays < 0 {
		return errors.New("notification.log rotation limits must not be negative")
	}
	return nil
}

// SchedulerConfig converts the reminder settings. Blank durations use the
// scheduler defaults.
func (c *Config) SchedulerConfig() (reminder.Config, error) {
	out := reminder.Config{Workers: c.Reminder.Workers}
	for _, f := range []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"reminder.lead_time", c.Reminder.LeadTime, &out.LeadTime},
		{"reminder.sweep_interval", c.Reminder.SweepInterval, &out.SweepInterval},
		{"reminder.snooze", c.Reminder.Snooze, &out.SnoozeDuration},
	} {
		if f.val == "" {
			continue
		}
		d, err := reminder.ParseDuration(f.val)
		if err != nil {
			return reminder.Config{}, fmt.Errorf("invalid duration for %s: %w", f.key, err)
		}
		*f.dst = d
	}
	return out, nil
}

// NotificationSettings converts the notification settings.
func (c *Config) NotificationSettings() notification.Config {
	n := c.Notification
	return notification.Config{
		Enabled: n.OS.Enabled || n.Log.Enabled,
		OSNotification: notification.OSNotificationConfig{
			Enabled:        n.OS.Enabled,
			OnReminder:     n.OS.OnReminder,
			OnStoreOffline: n.OS.OnStoreOffline,
		},
		LogNotification: notification.LogNotificationConfig{
			Enabled:    n.Log.Enabled,
			Path:       n.Log.Path,
			MaxSizeMB:  n.Log.MaxSizeMB,
			MaxBackups: n.Log.MaxBackups,
			MaxAgeDays: n.Log.MaxAgeDays,
		},
	}
}

// YAML renders the effective configuration. Secrets are omitted.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "remindo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "remindo")
	}
	return filepath.Join(home, fallbackPath, "remindo")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// GetCacheDir returns the cache directory following XDG spec
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
