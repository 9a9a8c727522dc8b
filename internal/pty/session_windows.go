//go:build windows

package pty

import (
	"os"
	"syscall"
)

// openPTY returns ErrNotSupported on Windows.
// Windows support would require ConPTY (Console Pseudo Terminal) which
// is available in Windows 10 1809+ but needs its own handle plumbing.
func openPTY(rows, cols uint16) (*os.File, *os.File, error) {
	return nil, nil, ErrNotSupported
}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
