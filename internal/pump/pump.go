// Package pump moves pty output into the event queue. A Pump owns its
// decoder; nothing else touches the decoder state.
package pump

import (
	"errors"
	"io"
	"log/slog"

	"github.com/Dicklesworthstone/hackerterm/internal/eventq"
	"github.com/Dicklesworthstone/hackerterm/internal/vte"
)

// DefaultChunkSize is the read size used when Options.ChunkSize is zero.
const DefaultChunkSize = 1024

// Options configures a Pump.
type Options struct {
	// ChunkSize is the maximum number of bytes per read.
	ChunkSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// Pump reads raw bytes, decodes them, and pushes the events in order.
type Pump struct {
	r       io.Reader
	queue   *eventq.Queue[vte.Event]
	decoder *vte.Decoder
	chunk   int
	logger  *slog.Logger

	events   int
	rejected bool
}

// New creates a pump from r into queue.
func New(r io.Reader, queue *eventq.Queue[vte.Event], opts Options) *Pump {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pump{
		r:       r,
		queue:   queue,
		decoder: vte.NewDecoder(),
		chunk:   opts.ChunkSize,
		logger:  opts.Logger,
	}
}

// Handle enqueues one decoded event. It implements vte.Handler.
func (p *Pump) Handle(ev vte.Event) {
	if p.rejected {
		return
	}
	if err := p.queue.Push(ev); err != nil {
		p.rejected = true
		return
	}
	p.events++
}

// Run reads until end of stream and returns the number of bytes read. A
// zero-length read or any read error ends the stream; neither is reported
// as a failure. Run closes the queue before returning, so the consumer
// drains what is left and stops.
func (p *Pump) Run() int64 {
	defer p.queue.Close()

	buf := make([]byte, p.chunk)
	var total int64
	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			total += int64(n)
			p.decoder.Feed(buf[:n], p)
			if p.rejected {
				p.logger.Debug("event queue closed, output pump stopping",
					"bytes", total, "events", p.events)
				return total
			}
		}

		switch {
		case err != nil:
			if errors.Is(err, io.EOF) {
				p.logger.Debug("pty output ended", "bytes", total, "events", p.events)
			} else {
				p.logger.Debug("pty read ended stream", "error", err, "bytes", total, "events", p.events)
			}
			return total
		case n == 0:
			p.logger.Debug("zero-length pty read, ending stream", "bytes", total, "events", p.events)
			return total
		}
	}
}

// Events returns the number of events enqueued so far. It is only
// meaningful once Run has returned.
func (p *Pump) Events() int {
	return p.events
}
