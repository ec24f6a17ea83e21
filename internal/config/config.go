// Package config provides configuration loading and management for sandbox.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultPrefix   = "DDL"
	DefaultLogLevel = "info"
)

// Config is the root configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Auth   AuthConfig   `mapstructure:"auth" yaml:"auth"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Prefix PrefixConfig `mapstructure:"prefix" yaml:"prefix"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// APIConfig describes the conversion backend.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	RefreshEndpoint string        `mapstructure:"refresh_endpoint" yaml:"refresh_endpoint"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AuthConfig controls bearer-token handling.
type AuthConfig struct {
	// Required marks every request as needing auth, so a 401 triggers a refresh.
	Required  bool   `mapstructure:"required" yaml:"required"`
	TokenFile string `mapstructure:"token_file" yaml:"token_file"`
}

// LogConfig controls the file logger. An empty File disables logging.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

type PrefixConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills any unset values.
func (c *Config) ApplyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultTimeout
	}
	if c.API.RefreshEndpoint == "" {
		c.API.RefreshEndpoint = "/auth/refresh"
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = filepath.Join(DefaultDir(), "tokens.json")
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Prefix.Default == "" {
		c.Prefix.Default = DefaultPrefix
	}
	if c.Output.Dir == "" {
		c.Output.Dir = defaultOutputDir()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %v", c.API.Timeout))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// DefaultDir is the per-user configuration directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sandbox"
	}
	return filepath.Join(dir, "sandbox")
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	downloads := filepath.Join(home, "Downloads")
	if info, err := os.Stat(downloads); err == nil && info.IsDir() {
		return downloads
	}
	return "."
}
