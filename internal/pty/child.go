package pty

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrTimeout is returned when a wait operation times out.
var ErrTimeout = errors.New("operation timed out")

// Signal represents a process signal.
type Signal int

const (
	// SIGINT is the interrupt signal (Ctrl+C).
	SIGINT Signal = iota
	// SIGTERM is the termination signal.
	SIGTERM
	// SIGKILL is the kill signal (cannot be caught).
	SIGKILL
	// SIGHUP is the hangup signal.
	SIGHUP
)

func (s Signal) syscall() (syscall.Signal, error) {
	switch s {
	case SIGINT:
		return syscall.SIGINT, nil
	case SIGTERM:
		return syscall.SIGTERM, nil
	case SIGKILL:
		return syscall.SIGKILL, nil
	case SIGHUP:
		return syscall.SIGHUP, nil
	default:
		return 0, fmt.Errorf("unknown signal: %d", s)
	}
}

// Child is the process running on the subordinate side of a Session.
// A background goroutine reaps the process; TryWait and Done observe the
// result without blocking.
type Child struct {
	cmd *exec.Cmd

	exitMu     sync.RWMutex
	exitCode   int
	exitSignal string
	exited     chan struct{}
}

func newChild(cmd *exec.Cmd) *Child {
	c := &Child{
		cmd:      cmd,
		exitCode: -1,
		exited:   make(chan struct{}),
	}
	go c.reap()
	return c
}

func (c *Child) reap() {
	code, signal := parseExitStatus(c.cmd.Wait())

	c.exitMu.Lock()
	c.exitCode = code
	c.exitSignal = signal
	c.exitMu.Unlock()
	close(c.exited)
}

func parseExitStatus(waitErr error) (int, string) {
	if waitErr == nil {
		return 0, ""
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 1, ""
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exitErr.ExitCode(), ""
	}
	if status.Signaled() {
		return -1, status.Signal().String()
	}
	return status.ExitStatus(), ""
}

// PID returns the process id.
func (c *Child) PID() int {
	if c.cmd.Process == nil {
		return -1
	}
	return c.cmd.Process.Pid
}

// TryWait reports whether the process has exited, without blocking.
func (c *Child) TryWait() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the process exits.
func (c *Child) Done() <-chan struct{} {
	return c.exited
}

// Wait blocks until the process exits and returns its exit code. A process
// killed by a signal reports -1.
func (c *Child) Wait() int {
	<-c.exited
	return c.ExitCode()
}

// WaitTimeout is Wait bounded by timeout. It returns ErrTimeout if the
// process is still running when the timeout elapses.
func (c *Child) WaitTimeout(timeout time.Duration) (int, error) {
	select {
	case <-c.exited:
		return c.ExitCode(), nil
	case <-time.After(timeout):
		return -1, ErrTimeout
	}
}

// ExitCode returns the exit code, or -1 while the process is running or
// when it was killed by a signal.
func (c *Child) ExitCode() int {
	c.exitMu.RLock()
	defer c.exitMu.RUnlock()
	return c.exitCode
}

// ExitSignal returns the name of the signal that killed the process, if any.
func (c *Child) ExitSignal() string {
	c.exitMu.RLock()
	defer c.exitMu.RUnlock()
	return c.exitSignal
}

// Signal sends sig to the running process. Signalling an exited process is
// a no-op.
func (c *Child) Signal(sig Signal) error {
	if c.TryWait() {
		return nil
	}
	if c.cmd.Process == nil {
		return fmt.Errorf("process not running")
	}

	s, err := sig.syscall()
	if err != nil {
		return err
	}
	if err := c.cmd.Process.Signal(s); err != nil && !c.TryWait() {
		return fmt.Errorf("signal %s: %w", s, err)
	}
	return nil
}

// Kill terminates the process: SIGHUP first, as a closing terminal would,
// then SIGKILL if it is still alive after grace.
func (c *Child) Kill(grace time.Duration) error {
	if c.TryWait() {
		return nil
	}
	if err := c.Signal(SIGHUP); err != nil {
		return err
	}
	if _, err := c.WaitTimeout(grace); err == nil {
		return nil
	}
	if err := c.Signal(SIGKILL); err != nil {
		return err
	}
	<-c.exited
	return nil
}
