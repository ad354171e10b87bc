// Package config provides configuration management for the diaglog application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DIAGLOG_WORKERS or
// DIAGLOG_MODULES_EDGE_WINDOW.
const EnvPrefix = "DIAGLOG"

// Config holds the application configuration.
type Config struct {
	// Reference is a YAML or TOML table file. Empty uses the built-in tables.
	Reference string `mapstructure:"reference"`
	// Workers bounds parallel analysis of several logs.
	Workers int `mapstructure:"workers"`
	// MaxSamples is how many representative records a bucket keeps.
	MaxSamples int `mapstructure:"max_samples"`
	// Timeout cancels an analysis run; zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`

	Log     LogConfig     `mapstructure:"log"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Modules ModulesConfig `mapstructure:"modules"`
	Digest  DigestConfig  `mapstructure:"digest"`
	Broker  BrokerConfig  `mapstructure:"broker"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestConfig tunes record ingestion.
type IngestConfig struct {
	MaxLineBytes int      `mapstructure:"max_line_bytes"`
	XMLKeywords  []string `mapstructure:"xml_keywords"`
}

// ModulesConfig tunes the module tracker.
type ModulesConfig struct {
	// Gateways overrides the gateway-class modules of the reference tables.
	Gateways              []string `mapstructure:"gateways"`
	EdgeWindow            int      `mapstructure:"edge_window"`
	IntermittentThreshold int      `mapstructure:"intermittent_threshold"`
	IntermittentWindow    int      `mapstructure:"intermittent_window"`
}

// DigestConfig is the default budget of the AI digest.
type DigestConfig struct {
	MaxChars  int `mapstructure:"max_chars"`
	MaxTokens int `mapstructure:"max_tokens"`
}

// BrokerConfig selects the message transport of the agents.
type BrokerConfig struct {
	// Type is "memory" or "redpanda".
	Type     string   `mapstructure:"type"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
}

// Broker types.
const (
	BrokerMemory   = "memory"
	BrokerRedpanda = "redpanda"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers:    4,
		MaxSamples: 5,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ingest: IngestConfig{
			MaxLineBytes: 64 * 1024,
		},
		Modules: ModulesConfig{
			EdgeWindow:            5,
			IntermittentThreshold: 3,
			IntermittentWindow:    200,
		},
		Digest: DigestConfig{
			MaxChars:  4000,
			MaxTokens: 1000,
		},
		Broker: BrokerConfig{
			Type:     BrokerMemory,
			Brokers:  []string{"localhost:19092"},
			ClientID: "diaglog",
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("reference", d.Reference)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("max_samples", d.MaxSamples)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("ingest.max_line_bytes", d.Ingest.MaxLineBytes)
	v.SetDefault("ingest.xml_keywords", d.Ingest.XMLKeywords)
	v.SetDefault("modules.gateways", d.Modules.Gateways)
	v.SetDefault("modules.edge_window", d.Modules.EdgeWindow)
	v.SetDefault("modules.intermittent_threshold", d.Modules.IntermittentThreshold)
	v.SetDefault("modules.intermittent_window", d.Modules.IntermittentWindow)
	v.SetDefault("digest.max_chars", d.Digest.MaxChars)
	v.SetDefault("digest.max_tokens", d.Digest.MaxTokens)
	v.SetDefault("broker.type", d.Broker.Type)
	v.SetDefault("broker.brokers", d.Broker.Brokers)
	v.SetDefault("broker.client_id", d.Broker.ClientID)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. An explicit path must exist. Without one,
// diaglog.yaml is looked up in the working directory and in
// $HOME/.config/diaglog; when none is found the defaults apply. Environment
// variables override file values.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("diaglog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "diaglog"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromEnv loads configuration from defaults and environment variables only.
func LoadFromEnv() (*Config, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return &Error{Field: "workers", Message: "must be at least 1"}
	case c.MaxSamples < 1:
		return &Error{Field: "max_samples", Message: "must be at least 1"}
	case c.Timeout < 0:
		return &Error{Field: "timeout", Message: "must not be negative"}
	case c.Ingest.MaxLineBytes < 1:
		return &Error{Field: "ingest.max_line_bytes", Message: "must be positive"}
	case c.Modules.EdgeWindow < 0:
		return &Error{Field: "modules.edge_window", Message: "must not be negative"}
	case c.Modules.IntermittentThreshold < 0 || c.Modules.IntermittentWindow < 0:
		return &Error{Field: "modules.intermittent", Message: "must not be negative"}
	case c.Digest.MaxChars < 0 || c.Digest.MaxTokens < 0:
		return &Error{Field: "digest", Message: "budget must not be negative"}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}

	switch c.Broker.Type {
	case BrokerMemory:
	case BrokerRedpanda:
		if len(c.Broker.Brokers) == 0 {
			return &Error{Field: "broker.brokers", Message: "redpanda needs at least one broker address"}
		}
	default:
		return &Error{Field: "broker.type", Message: fmt.Sprintf("unknown broker %q", c.Broker.Type)}
	}
	return nil
}

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config " + e.Field + ": " + e.Message
}
