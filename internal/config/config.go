// Package config loads the YAML configuration shared by the bgrealm CLI and
// embedding applications.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AppleFlash/BackgroundRealm/internal/schema"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// Config is the top-level configuration file.
type Config struct {
	// Store configures the SQLite database.
	Store StoreConfig `yaml:"store"`

	// Schema is the path of a CUE file declaring record kinds. Empty means
	// the built-in kinds.
	Schema string `yaml:"schema,omitempty"`

	// Listen configures the workers hosting store observers.
	Listen ListenConfig `yaml:"listen"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// StoreConfig configures the database.
type StoreConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout,omitempty"`
	Synchronous string        `yaml:"synchronous,omitempty"`
}

// ListenConfig configures the listen worker pool.
type ListenConfig struct {
	// WorkerName is the name subscriptions request workers under.
	WorkerName string `yaml:"worker_name,omitempty"`

	// PerNameIsolation keys worker reuse by name instead of sharing one
	// worker between every caller.
	PerNameIsolation bool `yaml:"per_name_isolation,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`
}

var validSynchronous = []string{"OFF", "NORMAL", "FULL", "EXTRA"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        "bgrealm.db",
			BusyTimeout: 5 * time.Second,
			Synchronous: "NORMAL",
		},
		Listen: ListenConfig{WorkerName: "listen"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults.
// Unknown fields are rejected so typos surface as errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the store cannot use.
func (c *Config) Validate() error {
	var problems []string
	if c.Store.Path == "" {
		problems = append(problems, "store.path is required")
	}
	if c.Store.BusyTimeout < 0 {
		problems = append(problems, "store.busy_timeout must not be negative")
	}
	if c.Store.Synchronous != "" && !contains(validSynchronous, strings.ToUpper(c.Store.Synchronous)) {
		problems = append(problems, fmt.Sprintf("store.synchronous %q must be one of %v", c.Store.Synchronous, validSynchronous))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadSchema compiles the configured schema file, or returns the built-in
// kinds.
func (c *Config) LoadSchema() (*schema.Schema, error) {
	if c.Schema == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(c.Schema)
}

// StoreConfig returns the store configuration, with the schema compiled.
func (c *Config) StoreConfig(logger *slog.Logger) (store.Config, error) {
	kinds, err := c.LoadSchema()
	if err != nil {
		return store.Config{}, err
	}
	cfg := store.DefaultConfig(c.Store.Path)
	cfg.Schema = kinds
	cfg.Logger = logger
	if c.Store.BusyTimeout > 0 {
		cfg.BusyTimeout = c.Store.BusyTimeout
	}
	if c.Store.Synchronous != "" {
		cfg.Synchronous = strings.ToUpper(c.Store.Synchronous)
	}
	return cfg, nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q must be one of debug, info, warn, error", s)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
