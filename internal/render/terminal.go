package render

import (
	"errors"
	"io"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme colors the terminal sink. Colors are lipgloss colors; empty means
// the terminal default.
type Theme struct {
	Foreground string
	Background string
	// AltScreen switches to the alternate screen between Start and Stop.
	AltScreen bool
}

// HackerTheme is green on black on the alternate screen.
var HackerTheme = Theme{
	Foreground: "#00ff00",
	Background: "#000000",
	AltScreen:  true,
}

// ErrSinkStopped is returned by a TerminalSink drawing after Stop.
var ErrSinkStopped = errors.New("terminal sink stopped")

// TerminalSink draws on a real terminal. Printable characters are styled
// with the theme; control characters are written as-is so the terminal
// moves its own cursor.
//
// Start and Stop may be called from a goroutine other than the one drawing.
// Once Stop has run, drawing fails with ErrSinkStopped and writes nothing,
// so the restored terminal is left alone.
type TerminalSink struct {
	w     *errWriter
	out   *termenv.Output
	style lipgloss.Style
	theme Theme

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTerminalSink creates a sink writing to w. The color profile is
// detected from w unless opts override it.
func NewTerminalSink(w io.Writer, theme Theme, opts ...termenv.OutputOption) *TerminalSink {
	profile := termenv.NewOutput(w, opts...).Profile

	ew := &errWriter{w: w}
	renderer := lipgloss.NewRenderer(ew)
	renderer.SetColorProfile(profile)

	style := renderer.NewStyle()
	if theme.Foreground != "" {
		style = style.Foreground(lipgloss.Color(theme.Foreground))
	}
	if theme.Background != "" {
		style = style.Background(lipgloss.Color(theme.Background))
	}

	return &TerminalSink{
		w:     ew,
		out:   termenv.NewOutput(ew, termenv.WithProfile(profile)),
		style: style,
		theme: theme,
	}
}

// Start prepares the display: alternate screen if configured, hidden
// cursor, cleared screen.
func (s *TerminalSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true
	s.stopped = false
	if s.theme.AltScreen {
		s.out.AltScreen()
	}
	s.out.HideCursor()
	s.out.ClearScreen()
	s.out.MoveCursor(1, 1)
	return s.w.err
}

// Stop restores what Start changed.
func (s *TerminalSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	s.stopped = true
	s.out.Reset()
	s.out.ShowCursor()
	if s.theme.AltScreen {
		s.out.ExitAltScreen()
	}
	return s.w.err
}

// EmitCharacter implements Sink.
func (s *TerminalSink) EmitCharacter(r rune) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSinkStopped
	}
	if s.w.err != nil {
		return s.w.err
	}
	if unicode.IsControl(r) {
		_, err := s.w.Write(utf8.AppendRune(nil, r))
		return err
	}
	_, err := io.WriteString(s.w, s.style.Render(string(r)))
	return err
}

// ClearAndHome implements Sink.
func (s *TerminalSink) ClearAndHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSinkStopped
	}
	if s.w.err != nil {
		return s.w.err
	}
	s.out.ClearScreen()
	s.out.MoveCursor(1, 1)
	return s.w.err
}

// errWriter keeps the first write error. termenv's control helpers do not
// return errors, so the sink checks err after calling them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
