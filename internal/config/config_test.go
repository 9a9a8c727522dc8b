package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint16(24), cfg.Rows)
	assert.Equal(t, uint16(80), cfg.Cols)
	assert.Equal(t, 5*time.Millisecond, cfg.PacingDelay.Duration())
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 0, cfg.QueueCapacity, "queue is unbounded by default")
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout.Duration())
	assert.Equal(t, []string{"esc"}, cfg.Keys.Quit)
	assert.True(t, cfg.Theme.AltScreen)
	assert.Empty(t, cfg.Shell)
	require.NoError(t, cfg.Validate())
}

func TestHomeDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv("HACKERTERM_HOME", "/tmp/ht-home")
		assert.Equal(t, "/tmp/ht-home", HomeDir())
		assert.Equal(t, "/tmp/ht-home/config.yaml", DefaultPath())
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("HACKERTERM_HOME", "")
		t.Setenv("HOME", "/home/tester")
		assert.Equal(t, filepath.Join("/home/tester", ".hackerterm"), HomeDir())
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing default file yields defaults", func(t *testing.T) {
		t.Setenv("HACKERTERM_HOME", t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
rows: 40
cols: 132
shell: /bin/sh
shell_args: ["-i"]
pacing_delay: 1ms
queue_capacity: 512
keys:
  quit: ["esc", "ctrl+q"]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, uint16(40), cfg.Rows)
		assert.Equal(t, uint16(132), cfg.Cols)
		assert.Equal(t, "/bin/sh", cfg.Shell)
		assert.Equal(t, []string{"-i"}, cfg.ShellArgs)
		assert.Equal(t, time.Millisecond, cfg.PacingDelay.Duration())
		assert.Equal(t, 512, cfg.QueueCapacity)
		assert.Equal(t, []string{"esc", "ctrl+q"}, cfg.Keys.Quit)
		// Untouched values keep their defaults.
		assert.Equal(t, 1024, cfg.ChunkSize)
		assert.Equal(t, "#00ff00", cfg.Theme.Foreground)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rows: [oops"), 0600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("chunk_size: 0\n"), 0600))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunk_size")
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pacing_delay: 1ms\n"), 0600))
		t.Setenv("HACKERTERM_PACING_DELAY", "20ms")
		t.Setenv("HACKERTERM_SHELL", "/bin/sh")
		t.Setenv("HACKERTERM_ALT_SCREEN", "off")
		t.Setenv("HACKERTERM_SHUTDOWN_TIMEOUT", "750")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 20*time.Millisecond, cfg.PacingDelay.Duration())
		assert.Equal(t, "/bin/sh", cfg.Shell)
		assert.False(t, cfg.Theme.AltScreen)
		assert.Equal(t, 750*time.Millisecond, cfg.ShutdownTimeout.Duration())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Rows = 30
	cfg.PacingDelay = Duration(15 * time.Millisecond)
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# hackerterm configuration"))
	assert.Contains(t, string(data), "pacing_delay: 15ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows = 0
	assert.Error(t, cfg.Save(filepath.Join(t.TempDir(), "config.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero rows", func(c *Config) { c.Rows = 0 }, "rows"},
		{"zero cols", func(c *Config) { c.Cols = 0 }, "cols"},
		{"huge chunk", func(c *Config) { c.ChunkSize = maxChunkSize + 1 }, "chunk_size"},
		{"negative capacity", func(c *Config) { c.QueueCapacity = -1 }, "queue_capacity"},
		{"negative delay", func(c *Config) { c.PacingDelay = Duration(-time.Second) }, "pacing_delay"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"no quit key", func(c *Config) { c.Keys.Quit = nil }, "keys.quit"},
		{"blank quit key", func(c *Config) { c.Keys.Quit = []string{" "} }, "keys.quit"},
		{"missing work dir", func(c *Config) { c.WorkDir = "/nonexistent/hackerterm" }, "work_dir"},
		{"zero delay is fine", func(c *Config) { c.PacingDelay = 0 }, ""},
		{"bounded queue is fine", func(c *Config) { c.QueueCapacity = 8 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("work dir must be a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0600))
		cfg := DefaultConfig()
		cfg.WorkDir = file
		assert.Error(t, cfg.Validate())
	})
}

func TestDurationYAML(t *testing.T) {
	var out struct {
		D Duration `yaml:"d"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("d: 250ms"), &out))
	assert.Equal(t, 250*time.Millisecond, out.D.Duration())
	assert.Equal(t, "250ms", out.D.String())

	require.NoError(t, yaml.Unmarshal([]byte("d: 40"), &out))
	assert.Equal(t, 40*time.Millisecond, out.D.Duration(), "bare integers are milliseconds")

	require.NoError(t, yaml.Unmarshal([]byte("d: 0"), &out))
	assert.Zero(t, out.D.Duration())

	assert.Error(t, yaml.Unmarshal([]byte("d: soon"), &out))
	assert.Error(t, yaml.Unmarshal([]byte("d: -1s"), &out))
	assert.Error(t, yaml.Unmarshal([]byte("d: -5"), &out))
	assert.Error(t, yaml.Unmarshal([]byte("d: [1s]"), &out))

	out.D = Duration(250 * time.Millisecond)
	data, err := yaml.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, "d: 250ms\n", string(data))
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "YES", "1", "on"} {
		b, err := parseBool(s)
		require.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "No", "0", "off"} {
		b, err := parseBool(s)
		require.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := parseBool("maybe")
	assert.Error(t, err)
}
