package vte

import (
	"unicode/utf8"
)

const (
	// MaxParams is the number of CSI parameters kept. Parameters past it are
	// dropped; the sequence still dispatches on its final byte.
	MaxParams = 32

	// maxParamValue is where a single CSI parameter saturates.
	maxParamValue = 65535

	maxIntermediates = 2
)

type state uint8

const (
	stateGround state = iota
	stateEscape
	stateEscapeIntermediate
	stateCSIEntry
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSCString
	stateString // DCS, SOS, PM and APC payloads
)

var stateNames = [...]string{
	stateGround:             "ground",
	stateEscape:             "escape",
	stateEscapeIntermediate: "escape-intermediate",
	stateCSIEntry:           "csi-entry",
	stateCSIParam:           "csi-param",
	stateCSIIntermediate:    "csi-intermediate",
	stateCSIIgnore:          "csi-ignore",
	stateOSCString:          "osc-string",
	stateString:             "string",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

const (
	byteBS  = 0x08
	byteHT  = 0x09
	byteLF  = 0x0A
	byteCR  = 0x0D
	byteBEL = 0x07
	byteCAN = 0x18
	byteSUB = 0x1A
	byteESC = 0x1B
	byteDEL = 0x7F
)

// Decoder is a byte driven state machine that turns terminal output into
// Events. Every byte value has a defined transition in every state; bytes
// that belong to unsupported or malformed sequences are absorbed without
// producing an event and without disturbing the bytes that follow.
//
// A Decoder is owned by a single goroutine.
type Decoder struct {
	state state

	params      []uint16
	paramActive bool
	inter       []byte
	private     byte

	utf8Buf  [utf8.UTFMax]byte
	utf8Len  int
	utf8Need int
}

// NewDecoder returns a Decoder in the ground state.
func NewDecoder() *Decoder {
	return &Decoder{
		params: make([]uint16, 0, MaxParams),
		inter:  make([]byte, 0, maxIntermediates),
	}
}

// Feed advances the decoder over every byte of p.
func (d *Decoder) Feed(p []byte, h Handler) {
	for _, b := range p {
		d.Advance(b, h)
	}
}

// Advance moves the decoder forward by one byte, delivering any resulting
// events to h.
func (d *Decoder) Advance(b byte, h Handler) {
	// CAN and SUB abort whatever is in progress.
	if (b == byteCAN || b == byteSUB) && d.state != stateGround {
		d.state = stateGround
		return
	}

	switch d.state {
	case stateGround:
		d.ground(b, h)
	case stateEscape:
		d.escape(b, h)
	case stateEscapeIntermediate:
		d.escapeIntermediate(b, h)
	case stateCSIEntry:
		d.csiEntry(b, h)
	case stateCSIParam:
		d.csiParam(b, h)
	case stateCSIIntermediate:
		d.csiIntermediate(b, h)
	case stateCSIIgnore:
		d.csiIgnore(b, h)
	case stateOSCString:
		d.oscString(b)
	case stateString:
		d.str(b)
	default:
		d.state = stateGround
	}
}

// Pending reports whether the decoder is in the middle of a sequence or a
// multi-byte character.
func (d *Decoder) Pending() bool {
	return d.state != stateGround || d.utf8Need > 0
}

// Reset drops any partial sequence and returns to the ground state.
func (d *Decoder) Reset() {
	d.state = stateGround
	d.utf8Len = 0
	d.utf8Need = 0
	d.clearSequence()
}

func (d *Decoder) ground(b byte, h Handler) {
	if d.utf8Need > 0 {
		d.utf8Continue(b, h)
		return
	}

	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b == byteDEL:
	case b < byteDEL:
		h.Handle(Text(string(rune(b))))
	default:
		d.utf8Start(b, h)
	}
}

// execute handles a C0 control byte. Only four of them are visible to the
// renderer; the rest are dropped.
func (d *Decoder) execute(b byte, h Handler) {
	switch b {
	case byteLF:
		h.Handle(Newline)
	case byteCR:
		h.Handle(CarriageReturn)
	case byteHT:
		h.Handle(Tab)
	case byteBS:
		h.Handle(Backspace)
	}
}

func (d *Decoder) utf8Start(b byte, h Handler) {
	var need int
	switch {
	case b >= 0xC2 && b <= 0xDF:
		need = 2
	case b >= 0xE0 && b <= 0xEF:
		need = 3
	case b >= 0xF0 && b <= 0xF4:
		need = 4
	default:
		// Stray continuation byte or a lead byte that can never start a
		// valid sequence.
		h.Handle(Text(string(utf8.RuneError)))
		return
	}
	d.utf8Buf[0] = b
	d.utf8Len = 1
	d.utf8Need = need
}

func (d *Decoder) utf8Continue(b byte, h Handler) {
	if b < 0x80 || b > 0xBF {
		// Truncated sequence: replace it and decode b on its own.
		d.utf8Len = 0
		d.utf8Need = 0
		h.Handle(Text(string(utf8.RuneError)))
		d.ground(b, h)
		return
	}

	d.utf8Buf[d.utf8Len] = b
	d.utf8Len++
	if d.utf8Len < d.utf8Need {
		return
	}

	r, _ := utf8.DecodeRune(d.utf8Buf[:d.utf8Len])
	d.utf8Len = 0
	d.utf8Need = 0
	if r >= 0x80 && r <= 0x9F {
		// C1 control encoded as UTF-8.
		return
	}
	h.Handle(Text(string(r)))
}

func (d *Decoder) enterEscape() {
	d.clearSequence()
	d.state = stateEscape
}

func (d *Decoder) clearSequence() {
	d.params = d.params[:0]
	d.paramActive = false
	d.inter = d.inter[:0]
	d.private = 0
}

// abort leaves a sequence on a byte that can never be part of it. The byte
// is decoded again from the ground state so a following character keeps its
// alignment.
func (d *Decoder) abort(b byte, h Handler) {
	d.state = stateGround
	d.ground(b, h)
}

func (d *Decoder) collect(b byte) {
	if len(d.inter) < maxIntermediates {
		d.inter = append(d.inter, b)
	}
}

func (d *Decoder) escape(b byte, h Handler) {
	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b <= 0x2F:
		d.collect(b)
		d.state = stateEscapeIntermediate
	case b == '[':
		d.state = stateCSIEntry
	case b == ']':
		d.state = stateOSCString
	case b == 'P', b == 'X', b == '^', b == '_':
		d.state = stateString
	case b < byteDEL:
		// Single character escape (DECSC, RIS, ST, charset selection, ...).
		d.state = stateGround
	case b == byteDEL:
	default:
		d.abort(b, h)
	}
}

func (d *Decoder) escapeIntermediate(b byte, h Handler) {
	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b <= 0x2F:
		d.collect(b)
	case b < byteDEL:
		d.state = stateGround
	case b == byteDEL:
	default:
		d.abort(b, h)
	}
}

func (d *Decoder) csiEntry(b byte, h Handler) {
	switch {
	case b >= 0x3C && b <= 0x3F:
		d.private = b
		d.state = stateCSIParam
	default:
		d.csiParam(b, h)
	}
}

func (d *Decoder) csiParam(b byte, h Handler) {
	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b >= '0' && b <= '9':
		d.param(b - '0')
	case b == ';', b == ':':
		d.nextParam()
	case b >= 0x3C && b <= 0x3F:
		// Private marker after parameters.
		d.state = stateCSIIgnore
	case b <= 0x2F:
		d.collect(b)
		d.state = stateCSIIntermediate
	case b < byteDEL:
		d.csiDispatch(b, h)
	case b == byteDEL:
	default:
		d.abort(b, h)
	}
}

func (d *Decoder) param(digit byte) {
	d.state = stateCSIParam
	if !d.paramActive {
		if len(d.params) == MaxParams {
			return
		}
		d.params = append(d.params, 0)
		d.paramActive = true
	}
	i := len(d.params) - 1
	v := uint32(d.params[i])*10 + uint32(digit)
	if v > maxParamValue {
		v = maxParamValue
	}
	d.params[i] = uint16(v)
}

func (d *Decoder) nextParam() {
	d.state = stateCSIParam
	if !d.paramActive {
		// Empty parameter means default (zero).
		if len(d.params) == MaxParams {
			return
		}
		d.params = append(d.params, 0)
	}
	d.paramActive = false
}

func (d *Decoder) csiIntermediate(b byte, h Handler) {
	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b <= 0x2F:
		d.collect(b)
	case b <= 0x3F:
		d.state = stateCSIIgnore
	case b < byteDEL:
		d.csiDispatch(b, h)
	case b == byteDEL:
	default:
		d.abort(b, h)
	}
}

func (d *Decoder) csiIgnore(b byte, h Handler) {
	switch {
	case b == byteESC:
		d.enterEscape()
	case b < 0x20:
		d.execute(b, h)
	case b <= 0x3F, b == byteDEL:
	case b < byteDEL:
		d.state = stateGround
	default:
		d.abort(b, h)
	}
}

// csiDispatch acts on a complete control sequence. Erase-in-display, in any
// of its modes, is the only sequence the renderer cares about.
func (d *Decoder) csiDispatch(final byte, h Handler) {
	d.state = stateGround
	if final == 'J' {
		h.Handle(ClearScreen)
	}
}

func (d *Decoder) oscString(b byte) {
	switch b {
	case byteBEL:
		d.state = stateGround
	case byteESC:
		// Either the ST terminator or a new sequence; both end the OSC.
		d.enterEscape()
	}
}

func (d *Decoder) str(b byte) {
	if b == byteESC {
		d.enterEscape()
	}
}
