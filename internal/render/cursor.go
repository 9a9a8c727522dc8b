package render

// TabWidth is the distance between tab stops.
const TabWidth = 8

// Cursor is a zero-based display position.
type Cursor struct {
	Row int
	Col int
}

// CursorSink wraps a Sink and tracks where the cursor lands after each
// operation, reporting every move to OnMove. Decorative layers use it to
// anchor effects at the write position.
type CursorSink struct {
	next Sink
	rows int
	cols int
	pos  Cursor

	// OnMove is called after every successful operation with the new
	// position. It may be nil.
	OnMove func(Cursor)
}

// NewCursorSink wraps next for a display of rows × cols. Zero dimensions
// disable wrapping and scrolling on that axis.
func NewCursorSink(next Sink, rows, cols int) *CursorSink {
	return &CursorSink{next: next, rows: rows, cols: cols}
}

// Position returns the current cursor position.
func (s *CursorSink) Position() Cursor {
	return s.pos
}

// EmitCharacter implements Sink.
func (s *CursorSink) EmitCharacter(r rune) error {
	if err := s.next.EmitCharacter(r); err != nil {
		return err
	}

	switch r {
	case '\n':
		s.lineFeed()
	case '\r':
		s.pos.Col = 0
	case '\t':
		s.pos.Col = (s.pos.Col/TabWidth + 1) * TabWidth
		if s.cols > 0 && s.pos.Col >= s.cols {
			s.pos.Col = s.cols - 1
		}
	case '\b':
		if s.pos.Col > 0 {
			s.pos.Col--
		}
	default:
		if r < 0x20 || r == 0x7f {
			break
		}
		if s.cols > 0 && s.pos.Col >= s.cols {
			s.pos.Col = 0
			s.lineFeed()
		}
		s.pos.Col++
	}

	s.moved()
	return nil
}

// ClearAndHome implements Sink.
func (s *CursorSink) ClearAndHome() error {
	if err := s.next.ClearAndHome(); err != nil {
		return err
	}
	s.pos = Cursor{}
	s.moved()
	return nil
}

func (s *CursorSink) lineFeed() {
	s.pos.Row++
	if s.rows > 0 && s.pos.Row >= s.rows {
		s.pos.Row = s.rows - 1
	}
}

func (s *CursorSink) moved() {
	if s.OnMove != nil {
		s.OnMove(s.pos)
	}
}
