package render

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dicklesworthstone/hackerterm/internal/eventq"
	"github.com/Dicklesworthstone/hackerterm/internal/vte"
)

// Options configures a Consumer.
type Options struct {
	// Delay is slept after every emitted character.
	Delay time.Duration

	// Sleep replaces time.Sleep. Tests use it to observe pacing.
	Sleep func(time.Duration)

	// Logger for structured logging.
	Logger *slog.Logger
}

// Consumer applies queued events to a Sink in queue order.
type Consumer struct {
	queue  *eventq.Queue[vte.Event]
	sink   Sink
	delay  time.Duration
	sleep  func(time.Duration)
	logger *slog.Logger

	stopped atomic.Bool
	emitted int
	clears  int
}

// NewConsumer creates a consumer draining queue into sink.
func NewConsumer(queue *eventq.Queue[vte.Event], sink Sink, opts Options) *Consumer {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Consumer{
		queue:  queue,
		sink:   sink,
		delay:  opts.Delay,
		sleep:  opts.Sleep,
		logger: opts.Logger,
	}
}

// Run blocks until the queue is closed and drained, and returns nil. The
// only other exit is a sink failure: Run then closes the queue, so the
// producer stops too, and returns the error.
func (c *Consumer) Run() error {
	for {
		if c.stopped.Load() {
			c.logger.Debug("render stopped", "characters", c.emitted, "queued", c.queue.Len())
			return nil
		}
		ev, ok := c.queue.Pop()
		if !ok {
			c.logger.Debug("render queue drained", "characters", c.emitted, "clears", c.clears)
			return nil
		}
		if err := c.apply(ev); err != nil {
			c.queue.Close()
			c.logger.Warn("render sink failed", "event", ev.String(), "error", err)
			return err
		}
	}
}

func (c *Consumer) apply(ev vte.Event) error {
	if ev.Kind == vte.KindClearScreen {
		c.clears++
		if err := c.sink.ClearAndHome(); err != nil {
			return fmt.Errorf("clear display: %w", err)
		}
		return nil
	}

	for _, r := range ev.Runes() {
		if c.stopped.Load() {
			return nil
		}
		if err := c.sink.EmitCharacter(r); err != nil {
			return fmt.Errorf("emit %q: %w", r, err)
		}
		c.emitted++
		if c.delay > 0 {
			c.sleep(c.delay)
		}
	}
	return nil
}

// Stop makes Run return before its next sink call, dropping whatever is
// still queued. A sink call already in progress is not interrupted. Stop
// closes the queue so a blocked producer is released too.
func (c *Consumer) Stop() {
	c.stopped.Store(true)
	c.queue.Close()
}

// Emitted returns the number of characters emitted so far. It is only
// meaningful once Run has returned.
func (c *Consumer) Emitted() int {
	return c.emitted
}
