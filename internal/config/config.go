// Package config loads the shell's settings from defaults, an optional YAML or
// TOML file, the environment, and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tsh/internal/jobs"
	"tsh/internal/logging"
)

const (
	DefaultPrompt   = "tsh> "
	DefaultLogLevel = "info"
)

// Config holds the effective settings.
type Config struct {
	Prompt       string
	EmitPrompt   bool
	MaxJobs      int
	PollInterval time.Duration
	LogLevel     string
	Color        bool
	// Path is the file the settings were read from, empty when none.
	Path string
}

// fileConfig is the on-disk shape. Pointers distinguish unset from zero.
type fileConfig struct {
	Prompt       *string `yaml:"prompt" toml:"prompt"`
	EmitPrompt   *bool   `yaml:"emit_prompt" toml:"emit_prompt"`
	MaxJobs      int     `yaml:"max_jobs" toml:"max_jobs"`
	PollInterval string  `yaml:"poll_interval" toml:"poll_interval"`
	LogLevel     string  `yaml:"log_level" toml:"log_level"`
	Color        *bool   `yaml:"color" toml:"color"`
}

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidValue      = errors.New("invalid config value")
)

// ParseError reports a config file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Prompt:       DefaultPrompt,
		EmitPrompt:   true,
		MaxJobs:      jobs.DefaultMaxJobs,
		PollInterval: jobs.DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
		Color:        true,
	}
}

// Load builds the configuration. An explicit path must exist; otherwise the
// first file found by searchPaths is used, and having none is fine.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfig()
	} else if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := cfg.merge(path, data); err != nil {
			return cfg, err
		}
		cfg.Path = path
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Validate checks the settings for values the shell cannot run with.
func (c Config) Validate() error {
	if c.MaxJobs < 1 {
		return fmt.Errorf("max_jobs %d: %w", c.MaxJobs, ErrInvalidValue)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval %s: %w", c.PollInterval, ErrInvalidValue)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, ErrInvalidValue)
	}
	return nil
}

func (c *Config) merge(path string, data []byte) error {
	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return &ParseError{Path: path, Err: err}
		}
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return &ParseError{Path: path, Err: err}
		}
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	if fc.Prompt != nil {
		c.Prompt = *fc.Prompt
	}
	if fc.EmitPrompt != nil {
		c.EmitPrompt = *fc.EmitPrompt
	}
	if fc.MaxJobs != 0 {
		c.MaxJobs = fc.MaxJobs
	}
	if fc.PollInterval != "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return &ParseError{Path: path, Err: err}
		}
		c.PollInterval = d
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Color != nil {
		c.Color = *fc.Color
	}
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("TSH_PROMPT"); ok {
		c.Prompt = v
	}
	if v := os.Getenv("TSH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Color = false
	}
}

// searchPaths lists candidate config files, most specific first.
func searchPaths() []string {
	paths := []string{".tsh.yaml", ".tsh.yml", ".tsh.toml"}
	dir, err := os.UserConfigDir()
	if err == nil && dir != "" && dir != "/" {
		for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
			paths = append(paths, filepath.Join(dir, "tsh", name))
		}
	}
	return paths
}

func findConfig() string {
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
