package pty

import "os/exec"

// lookPath allows mocking exec.LookPath in tests
var lookPath = exec.LookPath

// fallbackShells are tried in order when zsh is not installed.
var fallbackShells = []string{"/bin/bash", "/bin/sh"}

// DefaultShell picks the shell for a new session: zsh when it is on PATH,
// otherwise bash, otherwise sh.
func DefaultShell() string {
	if path, err := lookPath("zsh"); err == nil {
		return path
	}
	for _, sh := range fallbackShells {
		if _, err := lookPath(sh); err == nil {
			return sh
		}
	}
	return fallbackShells[0]
}
