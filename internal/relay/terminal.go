package relay

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// TerminalKeys reads key events from a raw-mode terminal.
type TerminalKeys struct {
	fd      int
	state   *term.State
	reader  cancelreader.CancelReader
	buf     []byte
	pending []Key
}

// NewTerminalKeys puts f into raw mode and reads keys from it. Close
// restores the terminal.
func NewTerminalKeys(f *os.File) (*TerminalKeys, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}

	reader, err := cancelreader.NewReader(f)
	if err != nil {
		_ = term.Restore(fd, state)
		return nil, fmt.Errorf("create cancelable reader: %w", err)
	}

	return &TerminalKeys{
		fd:     fd,
		state:  state,
		reader: reader,
		buf:    make([]byte, 256),
	}, nil
}

// ReadKey implements KeySource.
func (t *TerminalKeys) ReadKey() (Key, error) {
	for len(t.pending) == 0 {
		n, err := t.reader.Read(t.buf)
		if n > 0 {
			t.pending = ParseKeys(t.buf[:n])
		}
		if err != nil && len(t.pending) == 0 {
			return Key{}, err
		}
	}
	k := t.pending[0]
	t.pending = t.pending[1:]
	return k, nil
}

// Cancel aborts a blocked ReadKey, which then returns
// cancelreader.ErrCanceled.
func (t *TerminalKeys) Cancel() bool {
	return t.reader.Cancel()
}

// Close releases the reader and restores the terminal state.
func (t *TerminalKeys) Close() error {
	t.reader.Cancel()
	if err := t.reader.Close(); err != nil {
		_ = term.Restore(t.fd, t.state)
		return fmt.Errorf("close reader: %w", err)
	}
	if err := term.Restore(t.fd, t.state); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}
	return nil
}

var csiNames = map[byte]string{
	'A': "up",
	'B': "down",
	'C': "right",
	'D': "left",
	'H': "home",
	'F': "end",
	'Z': "shift+tab",
}

// ParseKeys splits one raw terminal read into key events. A read holding
// only ESC is the Escape key; ESC followed by more bytes is an escape
// sequence or an alt chord and never reads as Escape.
func ParseKeys(b []byte) []Key {
	var keys []Key
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0x1b:
			k, n := parseEscape(b[i:])
			keys = append(keys, k)
			i += n
		case c == '\r' || c == '\n':
			keys = append(keys, Enter)
			i++
		case c == 0x7f || c == 0x08:
			keys = append(keys, Backspace)
			i++
		case c == '\t':
			keys = append(keys, Other("tab"))
			i++
		case c == 0x00:
			keys = append(keys, Other("ctrl+@"))
			i++
		case c < 0x20:
			keys = append(keys, Other("ctrl+"+string(rune('a'+c-1))))
			i++
		default:
			r, size := utf8.DecodeRune(b[i:])
			if r == utf8.RuneError && size <= 1 {
				keys = append(keys, Other("invalid"))
				i++
				continue
			}
			keys = append(keys, Char(r))
			i += size
		}
	}
	return keys
}

// parseEscape decodes the key starting at b[0] == ESC and returns it with
// the number of bytes consumed.
func parseEscape(b []byte) (Key, int) {
	if len(b) == 1 {
		return Escape, 1
	}

	switch b[1] {
	case '[', 'O':
		// CSI or SS3: parameters run until a final byte in '@'..'~'.
		for j := 2; j < len(b); j++ {
			if b[j] >= 0x40 && b[j] <= 0x7e {
				name, ok := csiNames[b[j]]
				if !ok {
					name = "esc" + string(b[1:j+1])
				}
				return Other(name), j + 1
			}
		}
		return Other("esc" + string(b[1:])), len(b)
	case 0x1b:
		// ESC ESC: the first is a lone Escape pressed twice quickly.
		return Escape, 1
	default:
		r, size := utf8.DecodeRune(b[1:])
		return Other("alt+" + string(r)), 1 + size
	}
}
