package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel       = "EMBEDHTTPD_LOG_LEVEL"
	EnvLogFormat      = "EMBEDHTTPD_LOG_FORMAT"
	EnvLogFile        = "EMBEDHTTPD_LOG_FILE"
	EnvControlAddr    = "EMBEDHTTPD_CONTROL_ADDR"
	EnvRequestTimeout = "EMBEDHTTPD_REQUEST_TIMEOUT"
)

// Load reads and validates the configuration file at path. The format is
// detected from the extension: .json is JSON, anything else YAML.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err = ParseJSON(data)
	} else {
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w (file: %s)", err, path)
	}
	return cfg, nil
}

// ParseYAML parses and validates a YAML document on top of Default.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ParseJSON parses and validates a JSON document on top of Default.
func ParseJSON(data []byte) (*Config, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. getenv is usually
// os.Getenv. Invalid values are reported and leave the setting unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := getenv(EnvControlAddr); v != "" {
		c.Control.Addr = v
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.Bridge.RequestTimeout = Duration(d)
	}
	return c.Validate()
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return data, nil
}
