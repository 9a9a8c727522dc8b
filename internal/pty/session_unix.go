//go:build unix

package pty

import (
	"fmt"
	"os"
	"syscall"

	"github.com/creack/pty"
)

// openPTY allocates a master/subordinate pair and applies the window size.
// The returned master is non-blocking and registered with the runtime
// poller, so closing it interrupts a goroutine parked in Read.
func openPTY(rows, cols uint16) (master, tty *os.File, err error) {
	m, tty, err := pty.Open()
	if err != nil {
		return nil, nil, err
	}

	if err := pty.Setsize(m, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		_ = m.Close()
		_ = tty.Close()
		return nil, nil, fmt.Errorf("set window size: %w", err)
	}

	master, err = pollable(m)
	if err != nil {
		_ = tty.Close()
		return nil, nil, err
	}
	return master, tty, nil
}

// pollable re-opens f on a non-blocking duplicate of its descriptor and
// closes f. pty.Open hands back a blocking master; a Read on a blocking
// *os.File sits in the read syscall and Close cannot wake it.
func pollable(f *os.File) (*os.File, error) {
	defer f.Close()

	rc, err := f.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("pty master: %w", err)
	}

	fd := -1
	var dupErr error
	ctlErr := rc.Control(func(src uintptr) {
		syscall.ForkLock.RLock()
		defer syscall.ForkLock.RUnlock()
		fd, dupErr = syscall.Dup(int(src))
		if dupErr == nil {
			syscall.CloseOnExec(fd)
		}
	})
	if ctlErr != nil {
		return nil, fmt.Errorf("pty master: %w", ctlErr)
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup pty master: %w", dupErr)
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("set pty master non-blocking: %w", err)
	}
	return os.NewFile(uintptr(fd), f.Name()), nil
}

// sysProcAttr starts the child in a new session with the subordinate as its
// controlling terminal (fd 0 in the child).
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
}
