// Package vte decodes the byte stream a shell writes to its pseudo-terminal
// into a small set of render events.
//
// Only the subset of the VT/ANSI grammar needed to drive a character output
// effect is acted upon: printable text, the newline, carriage return, tab and
// backspace controls, and erase-in-display. Every other sequence is still
// parsed so the stream stays correctly segmented, but it produces no event.
package vte

import (
	"fmt"
	"strings"
)

// Kind identifies the variant of an Event.
type Kind uint8

const (
	// KindText carries one or more printable characters.
	KindText Kind = iota
	// KindNewline is a line feed (0x0A).
	KindNewline
	// KindCarriageReturn is a carriage return (0x0D).
	KindCarriageReturn
	// KindTab is a horizontal tab (0x09).
	KindTab
	// KindBackspace is a backspace (0x08).
	KindBackspace
	// KindClearScreen is an erase-in-display control sequence (CSI ... J).
	KindClearScreen
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNewline:
		return "newline"
	case KindCarriageReturn:
		return "carriage-return"
	case KindTab:
		return "tab"
	case KindBackspace:
		return "backspace"
	case KindClearScreen:
		return "clear-screen"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is a decoded render event. Events are plain values and are never
// mutated after construction.
type Event struct {
	Kind Kind
	// Text is set only for KindText.
	Text string
}

// Predefined control events.
var (
	Newline        = Event{Kind: KindNewline}
	CarriageReturn = Event{Kind: KindCarriageReturn}
	Tab            = Event{Kind: KindTab}
	Backspace      = Event{Kind: KindBackspace}
	ClearScreen    = Event{Kind: KindClearScreen}
)

// Text returns a text event for s.
func Text(s string) Event {
	return Event{Kind: KindText, Text: s}
}

// Runes returns the characters a renderer should emit for the event, in
// order. Control events map to their single control character. ClearScreen
// has no characters.
func (e Event) Runes() []rune {
	switch e.Kind {
	case KindText:
		return []rune(e.Text)
	case KindNewline:
		return []rune{'\n'}
	case KindCarriageReturn:
		return []rune{'\r'}
	case KindTab:
		return []rune{'\t'}
	case KindBackspace:
		return []rune{'\b'}
	default:
		return nil
	}
}

func (e Event) String() string {
	if e.Kind == KindText {
		return fmt.Sprintf("Text(%q)", e.Text)
	}
	return e.Kind.String()
}

// Handler receives decoded events.
type Handler interface {
	Handle(ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev Event)

// Handle calls f(ev).
func (f HandlerFunc) Handle(ev Event) {
	f(ev)
}

// Recorder is a Handler that keeps every event it receives.
// The zero value is ready to use. It is not safe for concurrent use.
type Recorder struct {
	Events []Event
}

// Handle appends ev.
func (r *Recorder) Handle(ev Event) {
	r.Events = append(r.Events, ev)
}

// Text concatenates the text of all recorded KindText events.
func (r *Recorder) Text() string {
	var b strings.Builder
	for _, ev := range r.Events {
		if ev.Kind == KindText {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}
