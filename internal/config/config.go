package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phish-analyzer/")
	v.AddConfigPath("$HOME/.phish-analyzer")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Reputation engine defaults. Port 11333 is the rspamd normal worker,
	// which needs no authentication; 11334 is the controller, which does.
	v.SetDefault("rspamd.host", "localhost")
	v.SetDefault("rspamd.port", 11333)
	v.SetDefault("rspamd.timeout", "10s")
	v.SetDefault("rspamd.ping_timeout", "5s")

	// SMTP filter defaults
	v.SetDefault("filter.listen_address", "0.0.0.0:10025")
	v.SetDefault("filter.block_quarantine", false)
	v.SetDefault("filter.relay_address", "localhost")
	v.SetDefault("filter.relay_port", 10026)
	v.SetDefault("filter.relay_enabled", true)
	v.SetDefault("filter.headers.classification", "X-Phish-Classification")
	v.SetDefault("filter.headers.score", "X-Phish-Score")
	v.SetDefault("filter.headers.action", "X-Phish-Action")

	// HTTP API defaults
	v.SetDefault("http.listen_address", "0.0.0.0:8080")
	v.SetDefault("http.cors_origins", []string{"*"})

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.retention", "168h")
	v.SetDefault("store.cleanup_frequency", "1h")
	v.SetDefault("store.sqlite_path", "/data/phish_reports.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phish_analyzer")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
