package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. SANDBOX_API_BASE_URL.
const EnvPrefix = "SANDBOX"

// Loader handles loading configuration from files and environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only resolves env vars for keys it knows about.
	defaults := NewConfig()
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.refresh_endpoint", defaults.API.RefreshEndpoint)
	v.SetDefault("api.timeout", defaults.API.Timeout)
	v.SetDefault("auth.required", defaults.Auth.Required)
	v.SetDefault("auth.token_file", defaults.Auth.TokenFile)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("prefix.default", defaults.Prefix.Default)
	v.SetDefault("output.dir", defaults.Output.Dir)

	return &Loader{v: v}
}

// LoadConfig loads configuration from path, merges environment variables,
// applies defaults and validates the result. An empty path means
// DefaultPath, which may be absent; an explicit path must exist.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, &LoadError{Path: path, Message: "config file not found", Err: err}
		}
	} else {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, &LoadError{Path: path, Message: "failed to read config file", Err: err}
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg, viperDecodeHook); err != nil {
		return nil, &LoadError{Path: path, Message: "failed to parse config file", Err: err}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Path: path, Message: "configuration validation failed", Err: err}
	}

	return cfg, nil
}

func viperDecodeHook(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load is a convenience function that creates a new Loader and loads configuration.
func Load(path string) (*Config, error) {
	return NewLoader().LoadConfig(path)
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(toFile(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// fileConfig mirrors Config with durations as strings so the written file
// reads "10s" rather than nanoseconds.
type fileConfig struct {
	API struct {
		BaseURL         string `yaml:"base_url"`
		RefreshEndpoint string `yaml:"refresh_endpoint"`
		Timeout         string `yaml:"timeout"`
	} `yaml:"api"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
	Prefix PrefixConfig `yaml:"prefix"`
	Output OutputConfig `yaml:"output"`
}

func toFile(cfg *Config) fileConfig {
	var fc fileConfig
	fc.API.BaseURL = cfg.API.BaseURL
	fc.API.RefreshEndpoint = cfg.API.RefreshEndpoint
	fc.API.Timeout = cfg.API.Timeout.String()
	fc.Auth = cfg.Auth
	fc.Log = cfg.Log
	fc.Prefix = cfg.Prefix
	fc.Output = cfg.Output
	return fc
}
