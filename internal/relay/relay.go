// Package relay forwards user key events to the shell's pty.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/muesli/cancelreader"
)

// ErrWriteFailure wraps errors writing to the pty.
var ErrWriteFailure = errors.New("pty write failed")

// Byte sent for the Backspace key. Shell line editors expect DEL, not BS.
const backspaceByte = 0x7f

// KeySource delivers key events one at a time.
type KeySource interface {
	// ReadKey blocks until the next key. io.EOF means there are no more.
	ReadKey() (Key, error)
}

// Options configures a Relay.
type Options struct {
	// Keys are the bindings. The zero value uses DefaultKeyMap.
	Keys KeyMap

	// Exited is closed when the child process exits. It may be nil.
	Exited <-chan struct{}

	// Logger for structured logging.
	Logger *slog.Logger
}

// Relay reads keys from a KeySource and writes their bytes to the pty.
// Each key is written with a single Write call; the writer is expected to
// flush before returning.
type Relay struct {
	keys   KeySource
	w      io.Writer
	keyMap KeyMap
	exited <-chan struct{}
	logger *slog.Logger
}

// New creates a relay from keys to w.
func New(keys KeySource, w io.Writer, opts Options) *Relay {
	if len(opts.Keys.Quit.Keys()) == 0 {
		opts.Keys = DefaultKeyMap()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Relay{
		keys:   keys,
		w:      w,
		keyMap: opts.Keys,
		exited: opts.Exited,
		logger: opts.Logger,
	}
}

type keyResult struct {
	key Key
	err error
}

// Run relays keys until the quit key, the child's exit, or ctx is done,
// all of which return nil. A failed write returns an error wrapping
// ErrWriteFailure; a failing key source returns its error.
//
// If the key source has a Cancel method it is called on return, so a read
// still blocked on the terminal does not outlive the loop.
func (r *Relay) Run(ctx context.Context) error {
	results := make(chan keyResult)
	stop := make(chan struct{})
	defer close(stop)
	defer r.cancelSource()

	go func() {
		for {
			k, err := r.keys.ReadKey()
			select {
			case results <- keyResult{key: k, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("input relay cancelled")
			return nil
		case <-r.exited:
			r.logger.Debug("child exited, input relay stopping")
			return nil
		case res := <-results:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) || errors.Is(res.err, cancelreader.ErrCanceled) {
					r.logger.Debug("key source ended", "error", res.err)
					return nil
				}
				return fmt.Errorf("read key: %w", res.err)
			}
			if r.childExited() {
				r.logger.Debug("child exited, input relay stopping")
				return nil
			}
			if key.Matches(res.key, r.keyMap.Quit) {
				r.logger.Debug("quit key pressed", "key", res.key.String())
				return nil
			}
			if err := r.forward(res.key); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) forward(k Key) error {
	var b []byte
	switch k.Type {
	case KeyChar:
		b = utf8.AppendRune(nil, k.Rune)
	case KeyEnter:
		b = []byte{'\n'}
	case KeyBackspace:
		b = []byte{backspaceByte}
	default:
		return nil
	}

	if _, err := r.w.Write(b); err != nil {
		r.logger.Warn("pty write failed", "key", k.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return nil
}

func (r *Relay) childExited() bool {
	if r.exited == nil {
		return false
	}
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

func (r *Relay) cancelSource() {
	if c, ok := r.keys.(interface{ Cancel() bool }); ok {
		c.Cancel()
	}
}
