// Package cmd implements the hackerterm CLI.
//
// The root command runs one session: the shell runs in a pseudo-terminal,
// its output is typed out at a fixed pace, and keystrokes go straight to the
// shell until Escape is pressed or the shell exits.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/hackerterm/internal/config"
	"github.com/Dicklesworthstone/hackerterm/internal/engine"
	"github.com/Dicklesworthstone/hackerterm/internal/logging"
	"github.com/Dicklesworthstone/hackerterm/internal/relay"
	"github.com/Dicklesworthstone/hackerterm/internal/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	logFile    string
	debug      bool
)

// stdin and stdout are swapped in tests.
var (
	stdin  = os.Stdin
	stdout = os.Stdout
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "hackerterm",
	Short: "A shell that types itself out like a movie hacker terminal",
	Long: `hackerterm runs your shell inside a pseudo-terminal and renders its
output one character at a time, green on black.

Keys go straight to the shell. Press Escape (or the keys configured under
keys.quit) to end the session; it also ends when the shell exits.

Configuration is read from ~/.hackerterm/config.yaml ($HACKERTERM_HOME
overrides the directory). Flags override the file.

Examples:
  hackerterm
  hackerterm --shell /bin/sh --delay 20ms
  hackerterm --cwd ~/src --rows 40 --cols 120`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runSession,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.hackerterm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file (default ~/.hackerterm/hackerterm.log)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.Flags().Uint16("rows", 0, "pty rows")
	rootCmd.Flags().Uint16("cols", 0, "pty columns")
	rootCmd.Flags().String("shell", "", "shell to run (default zsh, else bash)")
	rootCmd.Flags().String("cwd", "", "working directory of the shell")
	rootCmd.Flags().Duration("delay", 0, "pause after each rendered character")
	rootCmd.Flags().Int("queue-capacity", 0, "bound the render queue (0 = unbounded)")
	rootCmd.Flags().Bool("no-alt-screen", false, "render on the main screen")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves the configuration: defaults, file, environment, then
// the flags the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("rows") {
		if cfg.Rows, err = flags.GetUint16("rows"); err != nil {
			return err
		}
	}
	if flags.Changed("cols") {
		if cfg.Cols, err = flags.GetUint16("cols"); err != nil {
			return err
		}
	}
	if flags.Changed("shell") {
		if cfg.Shell, err = flags.GetString("shell"); err != nil {
			return err
		}
	}
	if flags.Changed("cwd") {
		if cfg.WorkDir, err = flags.GetString("cwd"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		d, err := flags.GetDuration("delay")
		if err != nil {
			return err
		}
		cfg.PacingDelay = config.Duration(d)
	}
	if flags.Changed("queue-capacity") {
		if cfg.QueueCapacity, err = flags.GetInt("queue-capacity"); err != nil {
			return err
		}
	}
	if flags.Changed("no-alt-screen") {
		off, err := flags.GetBool("no-alt-screen")
		if err != nil {
			return err
		}
		cfg.Theme.AltScreen = !off
	}
	return nil
}

func runSession(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(stdin.Fd())) {
		return fmt.Errorf("hackerterm needs an interactive terminal on stdin")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{Path: logFile, Debug: debug})
	if err != nil {
		return err
	}
	defer closer.Close()

	keys, err := relay.NewTerminalKeys(stdin)
	if err != nil {
		return err
	}
	defer keys.Close()

	sink := render.NewTerminalSink(stdout, render.Theme{
		Foreground: cfg.Theme.Foreground,
		Background: cfg.Theme.Background,
		AltScreen:  cfg.Theme.AltScreen,
	})
	if err := sink.Start(); err != nil {
		return fmt.Errorf("prepare terminal: %w", err)
	}
	defer sink.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	start := time.Now()
	res, err := engine.New(cfg, engine.Options{Logger: logger}).Run(ctx, keys, sink)
	if err != nil {
		logger.Error("session failed", "error", err)
		return err
	}
	logger.Info("session finished", "session", res.ID, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
