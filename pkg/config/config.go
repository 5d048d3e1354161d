// Package config loads the bridge configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvLogLevel   = "BLEBRIDGE_LOG_LEVEL"
	EnvMQTTBroker = "BLEBRIDGE_MQTT_BROKER"
)

// Config holds application configuration
type Config struct {
	Platform string       `yaml:"platform" default:"Bluetooth"`
	PluginID string       `yaml:"plugin_id" default:"blebridge"`
	LogLevel logrus.Level `yaml:"log_level"`

	// Zero disables the bound on pending connect/discovery operations.
	ConnectTimeout   time.Duration `yaml:"connect_timeout" default:"30s"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" default:"20s"`
	ProbeInterval    time.Duration `yaml:"probe_interval" default:"5s"`

	Accessories []AccessoryConfig `yaml:"accessories"`
	Store       StoreConfig       `yaml:"store"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// AccessoryConfig declares one configured device.
type AccessoryConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Model   string `yaml:"model"`
	// Services optionally narrows the model to a subset of its service UUIDs.
	Services []string `yaml:"services"`
}

// StoreConfig locates the host accessory store.
type StoreConfig struct {
	Path string `yaml:"path" default:"accessories.yaml"`
}

// MQTTConfig configures the MQTT mirror of the host bridge.
type MQTTConfig struct {
	Enabled     bool          `yaml:"enabled" default:"false"`
	Broker      string        `yaml:"broker" default:"tcp://localhost:1883"`
	ClientID    string        `yaml:"client_id" default:"blebridge"`
	TopicPrefix string        `yaml:"topic_prefix" default:"blebridge"`
	QoS         int           `yaml:"qos" default:"1"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.LogLevel = logrus.InfoLevel
	return cfg
}

// Load reads the YAML file at path on top of the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
	return nil
}

// Validate checks the platform-level settings. The device list itself is
// validated when the registry is built from it.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Platform) == "" {
		errs = append(errs, errors.New("platform must not be empty"))
	}
	if strings.TrimSpace(c.PluginID) == "" {
		errs = append(errs, errors.New("plugin_id must not be empty"))
	}
	if c.ConnectTimeout < 0 || c.DiscoveryTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
		if strings.Trim(c.MQTT.TopicPrefix, "/") == "" {
			errs = append(errs, errors.New("mqtt.topic_prefix must not be empty"))
		}
	}

	return errors.Join(errs...)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
