// Package config loads the YAML configuration file (§6 environment
// variables, §5 resource limits), following the teacher's
// LoadConfig/validateAndSetDefaults/DefaultConfig shape re-keyed to
// this service's network/storage/logging sections.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig covers the association acceptor's negotiation
// parameters and resource limits (4.B/§5/§6).
type NetworkConfig struct {
	Port             int    `yaml:"port"`
	AETitle          string `yaml:"ae_title"`
	MaxAssociations  int    `yaml:"max_associations"`
	MaxPDULength     int    `yaml:"max_pdu_length"`
	IdleTimeoutSec   int    `yaml:"idle_timeout_seconds"`
	RequestTimeoutSec int   `yaml:"request_timeout_seconds"`
	PrintTimeoutSec  int    `yaml:"print_timeout_seconds"`
	MaxPixelBytes    int64  `yaml:"max_pixel_bytes"`
	SwapRowsColumns  bool   `yaml:"swap_rows_columns"`
}

// StorageConfig covers where rendered pages land (§6 Persistent state).
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig mirrors the teacher's logging section.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

const (
	defaultMaxAssociations  = 16
	defaultMaxPDULength     = 16 * 1024
	defaultIdleTimeoutSec   = 60
	defaultRequestTimeoutSec = 30
	defaultPrintTimeoutSec  = 120
	defaultMaxPixelBytes    = 256 * 1024 * 1024
	minMaxPDULength         = 16 * 1024
)

// LoadConfig loads configuration from file, applying defaults for any
// unset field. An empty configPath is not an error: DefaultConfig() alone
// is returned, since --config and PRINTSCP_CONFIG are both optional. A
// configPath naming a file that does not exist is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.validateAndSetDefaults()
	return cfg, nil
}

// DefaultConfig returns the configuration this service runs with absent
// any file or flag overrides (§6: "port has no default").
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			AETitle:           "PRINTSCP",
			MaxAssociations:   defaultMaxAssociations,
			MaxPDULength:      defaultMaxPDULength,
			IdleTimeoutSec:    defaultIdleTimeoutSec,
			RequestTimeoutSec: defaultRequestTimeoutSec,
			PrintTimeoutSec:   defaultPrintTimeoutSec,
			MaxPixelBytes:     defaultMaxPixelBytes,
		},
		Storage: StorageConfig{OutputDir: "output"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// validateAndSetDefaults fills in zero-valued fields, matching the
// teacher's validateAndSetDefaults's "if unset, default" idiom.
func (c *Config) validateAndSetDefaults() {
	if c.Network.AETitle == "" {
		c.Network.AETitle = "PRINTSCP"
	}
	if c.Network.MaxAssociations <= 0 {
		c.Network.MaxAssociations = defaultMaxAssociations
	}
	if c.Network.MaxPDULength < minMaxPDULength {
		c.Network.MaxPDULength = defaultMaxPDULength
	}
	if c.Network.IdleTimeoutSec <= 0 {
		c.Network.IdleTimeoutSec = defaultIdleTimeoutSec
	}
	if c.Network.RequestTimeoutSec <= 0 {
		c.Network.RequestTimeoutSec = defaultRequestTimeoutSec
	}
	if c.Network.PrintTimeoutSec <= 0 {
		c.Network.PrintTimeoutSec = defaultPrintTimeoutSec
	}
	if c.Network.MaxPixelBytes <= 0 {
		c.Network.MaxPixelBytes = defaultMaxPixelBytes
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "output"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// IdleTimeout returns the configured idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Network.IdleTimeoutSec) * time.Second
}

// RequestTimeout returns the configured per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Network.RequestTimeoutSec) * time.Second
}

// PrintTimeout returns the configured print-action timeout.
func (c *Config) PrintTimeout() time.Duration {
	return time.Duration(c.Network.PrintTimeoutSec) * time.Second
}
