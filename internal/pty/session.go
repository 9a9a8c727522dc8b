// Package pty owns the pseudo-terminal side of a session: it allocates the
// master/subordinate pair, spawns the shell bound to the subordinate end, and
// hands out the master's reader and its serialized writer.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ErrPtyAllocation is returned when the host cannot provide a pseudo-terminal.
var ErrPtyAllocation = errors.New("pty allocation failed")

// ErrSpawn is returned when the command cannot be found or fails to start.
var ErrSpawn = errors.New("spawn failed")

// ErrNotSupported is returned when PTY operations are not supported on
// the current platform.
var ErrNotSupported = errors.New("PTY operations not supported on this platform")

// ErrClosed is returned when operating on a closed session.
var ErrClosed = errors.New("pty session is closed")

// ErrAlreadySpawned is returned when a second child is spawned on a session.
var ErrAlreadySpawned = errors.New("pty session already has a child process")

const (
	// DefaultRows is the terminal height used when none is given.
	DefaultRows = 24
	// DefaultCols is the terminal width used when none is given.
	DefaultCols = 80
)

// Command describes the process to spawn on the subordinate side.
type Command struct {
	// Path is the executable; it is resolved through PATH when it has no
	// separator.
	Path string
	// Args are passed after Path.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is added on top of the current environment.
	Env []string
}

// Session is a pseudo-terminal pair plus at most one child process.
//
// The master file stays open until Close; readers and the writer handed out
// by the session are only valid while it is open.
type Session struct {
	rows uint16
	cols uint16

	master *os.File
	tty    *os.File
	writer *Writer

	mu     sync.Mutex
	child  *Child
	closed bool
}

// Open allocates a pseudo-terminal sized rows × cols. Zero values fall back
// to DefaultRows and DefaultCols.
func Open(rows, cols uint16) (*Session, error) {
	if rows == 0 {
		rows = DefaultRows
	}
	if cols == 0 {
		cols = DefaultCols
	}

	master, tty, err := openPTY(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPtyAllocation, err)
	}

	return &Session{
		rows:   rows,
		cols:   cols,
		master: master,
		tty:    tty,
		writer: newWriter(master),
	}, nil
}

// Spawn starts cmd with its standard streams bound to the subordinate side
// and the subordinate as its controlling terminal.
func (s *Session) Spawn(cmd Command) (*Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.child != nil {
		return nil, ErrAlreadySpawned
	}
	if cmd.Path == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}

	path, err := exec.LookPath(cmd.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	c := exec.Command(path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), "TERM=xterm-256color")
	c.Env = append(c.Env, cmd.Env...)
	c.Stdin = s.tty
	c.Stdout = s.tty
	c.Stderr = s.tty
	c.SysProcAttr = sysProcAttr()

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, path, err)
	}

	// The child holds its own copy of the subordinate end. Dropping ours
	// lets the master observe end-of-stream once the child is gone.
	_ = s.tty.Close()
	s.tty = nil

	s.child = newChild(c)
	return s.child, nil
}

// Child returns the spawned child, or nil before Spawn.
func (s *Session) Child() *Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child
}

// Reader returns a reader over the master's output side.
func (s *Session) Reader() io.Reader {
	return masterReader{f: s.master}
}

// Writer returns the serialized writer over the master's input side. Every
// call returns the same Writer.
func (s *Session) Writer() *Writer {
	return s.writer
}

// Size returns the rows and columns the session was opened with.
func (s *Session) Size() (rows, cols uint16) {
	return s.rows, s.cols
}

// Fd returns the file descriptor of the PTY master, or -1 once closed.
func (s *Session) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1
	}
	// os.File.Fd would switch the master back to blocking mode.
	rc, err := s.master.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = rc.Control(func(f uintptr) { fd = int(f) })
	return fd
}

// Close releases the pseudo-terminal. A Read blocked on the master returns
// an error right away, even while a child or its descendants keep the
// subordinate open; the output pump treats that as end of stream. Close does
// not stop the child; use Child.Kill for that.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.close()

	var firstErr error
	if s.tty != nil {
		if err := s.tty.Close(); err != nil {
			firstErr = fmt.Errorf("close tty: %w", err)
		}
		s.tty = nil
	}
	if err := s.master.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close pty: %w", err)
	}
	return firstErr
}

// masterReader exposes only the read side of the master file.
type masterReader struct {
	f *os.File
}

func (r masterReader) Read(p []byte) (int, error) {
	return r.f.Read(p)
}
