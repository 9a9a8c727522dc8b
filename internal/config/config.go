// Package config holds the hackerterm configuration. A Config is built once at
// startup (defaults, then the YAML file, then environment, then flags) and is
// read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRows is the pty height used when none is configured.
	DefaultRows = 24
	// DefaultCols is the pty width used when none is configured.
	DefaultCols = 80
	// DefaultPacingDelay is the pause after every rendered character.
	DefaultPacingDelay = 5 * time.Millisecond
	// DefaultChunkSize is the pty read size of the output pump.
	DefaultChunkSize = 1024
	// DefaultShutdownTimeout bounds how long teardown waits for the
	// background goroutines.
	DefaultShutdownTimeout = 2 * time.Second

	maxChunkSize = 1 << 20
)

// Config is the complete session configuration.
type Config struct {
	// Rows and Cols size the pseudo-terminal. They are fixed for the session.
	Rows uint16 `yaml:"rows"`
	Cols uint16 `yaml:"cols"`

	// Shell is the program to run. Empty selects zsh when installed,
	// otherwise bash.
	Shell     string   `yaml:"shell,omitempty"`
	ShellArgs []string `yaml:"shell_args,omitempty"`

	// WorkDir is the shell's working directory. Empty means the current
	// directory.
	WorkDir string `yaml:"work_dir,omitempty"`

	// PacingDelay is slept after every emitted character.
	PacingDelay Duration `yaml:"pacing_delay"`

	// ChunkSize is the maximum number of bytes per pty read.
	ChunkSize int `yaml:"chunk_size"`

	// QueueCapacity bounds the event queue. 0 keeps it unbounded, so output
	// can run ahead of rendering.
	QueueCapacity int `yaml:"queue_capacity"`

	// ShutdownTimeout bounds the wait for background goroutines on exit.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	Theme ThemeConfig `yaml:"theme"`
	Keys  KeysConfig  `yaml:"keys"`
}

// ThemeConfig colors the rendered output. Values are lipgloss colors:
// ANSI indexes ("2") or hex ("#00ff00").
type ThemeConfig struct {
	Foreground string `yaml:"foreground"`
	Background string `yaml:"background"`
	// AltScreen renders the session on the alternate screen.
	AltScreen bool `yaml:"alt_screen"`
}

// KeysConfig holds key bindings, as key names ("esc", "ctrl+q").
type KeysConfig struct {
	Quit []string `yaml:"quit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Rows:            DefaultRows,
		Cols:            DefaultCols,
		PacingDelay:     Duration(DefaultPacingDelay),
		ChunkSize:       DefaultChunkSize,
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
		Theme: ThemeConfig{
			Foreground: "#00ff00",
			Background: "#000000",
			AltScreen:  true,
		},
		Keys: KeysConfig{
			Quit: []string{"esc"},
		},
	}
}

// HomeDir returns the hackerterm state directory: $HACKERTERM_HOME, or
// ~/.hackerterm.
func HomeDir() string {
	if home := os.Getenv("HACKERTERM_HOME"); home != "" {
		return home
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".hackerterm"
	}
	return filepath.Join(homeDir, ".hackerterm")
}

// DefaultPath returns the path of the config file.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Load reads the configuration from path, or from DefaultPath when path is
// empty. A missing default file yields the defaults; a missing explicit
// file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path atomically.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append([]byte("# hackerterm configuration\n\n"), data...)

	tmpPath := path + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Rows == 0 {
		return fmt.Errorf("rows must be > 0")
	}
	if c.Cols == 0 {
		return fmt.Errorf("cols must be > 0")
	}
	if c.ChunkSize <= 0 || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("chunk_size must be between 1 and %d, got %d", maxChunkSize, c.ChunkSize)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative")
	}
	if c.PacingDelay.Duration() < 0 {
		return fmt.Errorf("pacing_delay cannot be negative")
	}
	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown_timeout must be > 0")
	}
	if len(c.Keys.Quit) == 0 {
		return fmt.Errorf("keys.quit needs at least one key")
	}
	for _, k := range c.Keys.Quit {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("keys.quit contains an empty key")
		}
	}
	if c.WorkDir != "" {
		info, err := os.Stat(c.WorkDir)
		if err != nil {
			return fmt.Errorf("work_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("work_dir %s is not a directory", c.WorkDir)
		}
	}
	return nil
}

// ApplyEnvOverrides updates the config from HACKERTERM_* environment
// variables. Unparseable values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("HACKERTERM_SHELL"); v != "" {
		c.Shell = v
	}
	if v := os.Getenv("HACKERTERM_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("HACKERTERM_PACING_DELAY"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.PacingDelay = d
		}
	}
	if v := os.Getenv("HACKERTERM_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("HACKERTERM_ROWS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Rows = uint16(n)
		}
	}
	if v := os.Getenv("HACKERTERM_COLS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Cols = uint16(n)
		}
	}
	if v := os.Getenv("HACKERTERM_ALT_SCREEN"); v != "" {
		if b, err := parseBool(v); err == nil {
			c.Theme.AltScreen = b
		}
	}
}

// Duration is a config timing value. It is written as a Go duration string
// ("5ms", "2s"); a bare integer is taken as milliseconds.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("duration cannot be negative: %s", s)
		}
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return Duration(dur), nil
}

// parseBool parses various boolean representations.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s (use true/false, yes/no, 1/0)", s)
	}
}
