// Package engine runs one terminal session: it opens the pty, spawns the
// shell, and runs the output pump, the render consumer and the input relay
// until the session ends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Dicklesworthstone/hackerterm/internal/config"
	"github.com/Dicklesworthstone/hackerterm/internal/eventq"
	"github.com/Dicklesworthstone/hackerterm/internal/pty"
	"github.com/Dicklesworthstone/hackerterm/internal/pump"
	"github.com/Dicklesworthstone/hackerterm/internal/relay"
	"github.com/Dicklesworthstone/hackerterm/internal/render"
	"github.com/Dicklesworthstone/hackerterm/internal/vte"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures an Engine.
type Options struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// OnCursor is told where the render cursor is after every character.
	OnCursor func(render.Cursor)
}

// Result describes a finished session.
type Result struct {
	// ID identifies the session in logs.
	ID string
	// ExitCode of the shell, or -1 if it was killed by a signal.
	ExitCode int
	// ExitSignal names the signal that killed the shell, if any.
	ExitSignal string
	// BytesRead from the pty.
	BytesRead int64
	// Characters emitted to the sink.
	Characters int
	// Cursor is the final render cursor position.
	Cursor render.Cursor
	// Detached is true when teardown timed out and background work was
	// abandoned.
	Detached bool
}

// Engine runs sessions with a fixed configuration.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	onCursor func(render.Cursor)
}

// New creates an engine. cfg is not modified.
func New(cfg *config.Config, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		logger:   opts.Logger,
		onCursor: opts.OnCursor,
	}
}

// Run runs one session: keys go to the shell and its output is drawn on
// sink. Run returns when the quit key is pressed, the shell exits, or ctx
// is done, after tearing the session down.
//
// pty allocation and spawn failures are returned before anything starts
// and match pty.ErrPtyAllocation and pty.ErrSpawn. A failed pty write
// matches relay.ErrWriteFailure. Sink failures end the session and are
// returned too.
func (e *Engine) Run(ctx context.Context, keys relay.KeySource, sink render.Sink) (*Result, error) {
	id := uuid.NewString()
	logger := e.logger.With("session", id)

	session, err := pty.Open(e.cfg.Rows, e.cfg.Cols)
	if err != nil {
		logger.Error("open pty", "error", err)
		return nil, err
	}

	cmd, err := e.command()
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	child, err := session.Spawn(cmd)
	if err != nil {
		_ = session.Close()
		logger.Error("spawn shell", "shell", cmd.Path, "error", err)
		return nil, err
	}
	rows, cols := session.Size()
	logger.Info("session started",
		"shell", cmd.Path, "dir", cmd.Dir, "pid", child.PID(), "rows", rows, "cols", cols)

	var queue *eventq.Queue[vte.Event]
	if e.cfg.QueueCapacity > 0 {
		queue = eventq.NewBounded[vte.Event](e.cfg.QueueCapacity)
	} else {
		queue = eventq.New[vte.Event]()
	}

	cursor := render.NewCursorSink(sink, int(rows), int(cols))
	cursor.OnMove = e.onCursor

	p := pump.New(session.Reader(), queue, pump.Options{
		ChunkSize: e.cfg.ChunkSize,
		Logger:    logger,
	})
	consumer := render.NewConsumer(queue, cursor, render.Options{
		Delay:  e.cfg.PacingDelay.Duration(),
		Logger: logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	pumpDone := make(chan struct{})
	var bytesRead int64
	g.Go(func() error {
		defer close(pumpDone)
		bytesRead = p.Run()
		return nil
	})
	g.Go(consumer.Run)

	relayErr := relay.New(keys, session.Writer(), relay.Options{
		Keys:   relay.NewKeyMap(e.cfg.Keys.Quit),
		Exited: child.Done(),
		Logger: logger,
	}).Run(gctx)

	detached := e.teardown(logger, session, child, consumer, pumpDone, g)

	res := &Result{
		ID:         id,
		ExitCode:   child.ExitCode(),
		ExitSignal: child.ExitSignal(),
		Detached:   detached,
	}
	if !detached {
		res.BytesRead = bytesRead
		res.Characters = consumer.Emitted()
		res.Cursor = cursor.Position()
	}
	logger.Info("session ended",
		"exit_code", res.ExitCode, "exit_signal", res.ExitSignal,
		"bytes", res.BytesRead, "characters", res.Characters, "detached", detached)

	if relayErr != nil {
		return res, relayErr
	}
	if !detached {
		if err := g.Wait(); err != nil {
			return res, fmt.Errorf("render: %w", err)
		}
	}
	return res, nil
}

// teardown stops the shell, lets the pump read what the shell already wrote,
// closes the pty and waits for the background goroutines, all within the
// shutdown timeout. It reports whether the goroutines were abandoned.
//
// The pump only sees end of stream once every holder of the subordinate end
// is gone. A background job of the shell can keep it open indefinitely, so
// draining gets half of what is left after the kill and the pty is then
// closed, which interrupts the pump's read.
func (e *Engine) teardown(logger *slog.Logger, session *pty.Session, child *pty.Child,
	consumer *render.Consumer, pumpDone <-chan struct{}, g *errgroup.Group) bool {
	timeout := e.cfg.ShutdownTimeout.Duration()
	deadline := time.Now().Add(timeout)

	if !child.TryWait() {
		logger.Debug("stopping shell", "pid", child.PID())
		if err := child.Kill(timeout / 2); err != nil {
			logger.Warn("kill shell", "pid", child.PID(), "error", err)
		}
	}

	select {
	case <-pumpDone:
	case <-time.After(time.Until(deadline) / 2):
		logger.Debug("pty still held open after shell exit, closing")
	}

	if err := session.Close(); err != nil {
		logger.Warn("close pty", "error", err)
	}

	waitDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		return false
	case <-time.After(time.Until(deadline)):
		// The consumer is stuck in the sink or still pacing out a backlog.
		// Stopping it keeps it off the sink once Run has returned and
		// releases a producer blocked on a full bounded queue.
		consumer.Stop()
		logger.Warn("background goroutines still running after shutdown timeout",
			"timeout", timeout)
		return true
	}
}

func (e *Engine) command() (pty.Command, error) {
	shell := e.cfg.Shell
	if shell == "" {
		shell = pty.DefaultShell()
	}

	dir := e.cfg.WorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return pty.Command{}, fmt.Errorf("%w: working directory: %w", pty.ErrSpawn, err)
		}
		dir = wd
	}

	return pty.Command{
		Path: shell,
		Args: e.cfg.ShellArgs,
		Dir:  dir,
	}, nil
}

// IsSetupError reports whether err happened before the session started.
func IsSetupError(err error) bool {
	return errors.Is(err, pty.ErrPtyAllocation) || errors.Is(err, pty.ErrSpawn) ||
		errors.Is(err, pty.ErrNotSupported)
}
