package pty

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Writer is the master's input side. Writes are serialized by a mutex held
// for one write-and-flush, so the child always sees each write complete and
// without delay.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	closed bool
}

func newWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriterSize(w, 256)}
}

// NewWriter wraps w in a serialized, flushing Writer.
func NewWriter(w io.Writer) *Writer {
	return newWriter(w)
}

// Write writes p and flushes it through to the pty.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	n, err := w.buf.Write(p)
	if err != nil {
		return n, fmt.Errorf("write to pty: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return n, fmt.Errorf("flush pty: %w", err)
	}
	return n, nil
}

// WriteString is Write for a string.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *Writer) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}
