package relay

import "github.com/charmbracelet/bubbles/key"

// KeyType classifies a key event.
type KeyType int

const (
	// KeyChar is a printable character.
	KeyChar KeyType = iota
	// KeyEnter is Enter/Return.
	KeyEnter
	// KeyBackspace is Backspace.
	KeyBackspace
	// KeyEscape is a lone Escape.
	KeyEscape
	// KeyOther is any other key: arrows, function keys, ctrl and alt chords.
	KeyOther
)

// Key is one key event.
type Key struct {
	Type KeyType
	// Rune is set for KeyChar.
	Rune rune
	// Name identifies KeyOther keys ("up", "ctrl+c", "alt+x").
	Name string
}

// Char returns a KeyChar event for r.
func Char(r rune) Key {
	return Key{Type: KeyChar, Rune: r}
}

// Predefined keys.
var (
	Enter     = Key{Type: KeyEnter}
	Backspace = Key{Type: KeyBackspace}
	Escape    = Key{Type: KeyEscape}
)

// Other returns a KeyOther event with the given name.
func Other(name string) Key {
	return Key{Type: KeyOther, Name: name}
}

// String returns the key's name as used in key bindings.
func (k Key) String() string {
	switch k.Type {
	case KeyChar:
		return string(k.Rune)
	case KeyEnter:
		return "enter"
	case KeyBackspace:
		return "backspace"
	case KeyEscape:
		return "esc"
	default:
		return k.Name
	}
}

// KeyMap holds the relay's key bindings.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap ends the session on Escape.
func DefaultKeyMap() KeyMap {
	return NewKeyMap([]string{"esc"})
}

// NewKeyMap builds a KeyMap whose Quit binding matches any of quit.
func NewKeyMap(quit []string) KeyMap {
	if len(quit) == 0 {
		quit = []string{"esc"}
	}
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys(quit...),
			key.WithHelp(quit[0], "end session"),
		),
	}
}
