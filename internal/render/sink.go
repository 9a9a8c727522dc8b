// Package render drains decoded events into a display sink at a fixed
// per-character pace.
package render

// Sink is the display the consumer draws on. Calls come from a single
// goroutine, one at a time.
type Sink interface {
	// EmitCharacter draws one character at the sink's cursor. Control
	// characters ('\n', '\r', '\t', '\b') move the cursor.
	EmitCharacter(r rune) error
	// ClearAndHome clears the display and moves the cursor to the origin.
	ClearAndHome() error
}
