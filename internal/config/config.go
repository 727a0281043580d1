// Package config loads SDK and CLI configuration. Values resolve in three
// layers: built-in defaults, then an optional YAML file, then environment
// variables. Only layers that set a value override the one below.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Duration is a time.Duration that reads "15s" style strings from both the
// YAML file and the environment.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.Decode(raw)
}

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(raw string) error {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the resolved CLI and SDK configuration.
type Config struct {
	// BaseURL is the platform API origin.
	BaseURL string `yaml:"base_url" env:"LVCOP_BASE_URL"`
	// APIPrefix overrides the default /api/v1 route prefix.
	APIPrefix string `yaml:"api_prefix" env:"LVCOP_API_PREFIX"`
	// Timeout is the default per-request deadline.
	Timeout Duration `yaml:"timeout" env:"LVCOP_TIMEOUT"`
	// RefreshTimeout bounds a token refresh call.
	RefreshTimeout Duration `yaml:"refresh_timeout" env:"LVCOP_REFRESH_TIMEOUT"`
	// RefreshEarly renews credentials that expire within this window.
	RefreshEarly Duration `yaml:"refresh_early" env:"LVCOP_REFRESH_EARLY"`
	// RateLimit caps outbound requests per second. Zero disables pacing.
	RateLimit float64 `yaml:"rate_limit" env:"LVCOP_RATE_LIMIT"`
	// RateBurst is the pacing burst size.
	RateBurst int `yaml:"rate_burst" env:"LVCOP_RATE_BURST"`

	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// SessionConfig selects where credentials persist between runs.
type SessionConfig struct {
	// Backend is one of file, memory, redis.
	Backend string `yaml:"backend" env:"LVCOP_SESSION_BACKEND"`
	// Dir is the directory for the file backend. Empty uses the platform
	// user config directory.
	Dir string `yaml:"dir" env:"LVCOP_SESSION_DIR"`
	// Namespace keys the stored session, letting several profiles coexist.
	Namespace string `yaml:"namespace" env:"LVCOP_SESSION_NAMESPACE"`
	// SealSecret encrypts the persisted session when set.
	SealSecret string `yaml:"seal_secret" env:"LVCOP_SESSION_SEAL_SECRET"`

	RedisAddr     string `yaml:"redis_addr" env:"LVCOP_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"LVCOP_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"LVCOP_REDIS_DB"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" env:"LVCOP_LOG_LEVEL"`
	// Console enables human-readable output instead of JSON.
	Console bool `yaml:"console" env:"LVCOP_LOG_CONSOLE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: "https://api.aequitas.ai",
		Timeout: Duration(15 * time.Second),
		Session: SessionConfig{Backend: BackendFile},
		Log:     LogConfig{Level: "info", Console: true},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "aequitas", "lvcop", "config.yaml")
}

// Load resolves configuration from defaults, the YAML file at path, and
// the environment. An empty path falls back to DefaultPath; a missing
// file at either is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No per-user file is the common case.
		case os.IsNotExist(err):
			return nil, fmt.Errorf("config file not found: %s", path)
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// A fully empty environment is fine, the file and defaults stand.
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize fills defaults and trims whitespace.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Session.Backend = strings.TrimSpace(strings.ToLower(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = BackendFile
	}
	c.Log.Level = strings.TrimSpace(strings.ToLower(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	switch c.Session.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	if c.Session.Backend == BackendRedis && c.Session.RedisAddr == "" {
		return fmt.Errorf("config: redis session backend requires redis_addr")
	}
	return nil
}
