//go:build unix

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dicklesworthstone/hackerterm/internal/config"
	"github.com/Dicklesworthstone/hackerterm/internal/logging"
	"github.com/Dicklesworthstone/hackerterm/internal/pty"
	"github.com/Dicklesworthstone/hackerterm/internal/relay"
	"github.com/Dicklesworthstone/hackerterm/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textSink collects emitted characters.
type textSink struct {
	mu     sync.Mutex
	sb     strings.Builder
	clears int
	err    error
}

func (s *textSink) EmitCharacter(r rune) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sb.WriteRune(r)
	return nil
}

func (s *textSink) ClearAndHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return nil
}

func (s *textSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sb.String()
}

// chanKeys delivers keys sent on a channel. Closing the channel is EOF.
type chanKeys chan relay.Key

func (c chanKeys) ReadKey() (relay.Key, error) {
	k, ok := <-c
	if !ok {
		return relay.Key{}, errors.New("key source closed")
	}
	return k, nil
}

func testConfig(t *testing.T, shell string, args ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Shell = shell
	cfg.ShellArgs = args
	cfg.WorkDir = t.TempDir()
	cfg.PacingDelay = 0
	cfg.ShutdownTimeout = config.Duration(5 * time.Second)
	return cfg
}

func newEngine(cfg *config.Config) *Engine {
	return New(cfg, Options{Logger: logging.Discard()})
}

type runResult struct {
	res *Result
	err error
}

func runAsync(e *Engine, keys relay.KeySource, sink render.Sink) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		res, err := e.Run(context.Background(), keys, sink)
		done <- runResult{res, err}
	}()
	return done
}

func waitRun(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(15 * time.Second):
		t.Fatal("session did not end")
		return runResult{}
	}
}

func TestRunEndsWhenShellExits(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `printf 'hi\n'; exit 3`)
	sink := &textSink{}

	r := waitRun(t, runAsync(newEngine(cfg), make(chanKeys), sink))

	require.NoError(t, r.err)
	assert.Equal(t, 3, r.res.ExitCode)
	assert.False(t, r.res.Detached)
	assert.NotEmpty(t, r.res.ID)
	assert.Equal(t, "hi\r\n", sink.String(), "the tty turns \\n into \\r\\n")
	assert.Equal(t, int64(4), r.res.BytesRead)
	assert.Equal(t, 4, r.res.Characters)
	assert.Equal(t, render.Cursor{Row: 1, Col: 0}, r.res.Cursor)
}

func TestRunRelaysInput(t *testing.T) {
	cfg := testConfig(t, "cat")
	sink := &textSink{}
	keys := make(chanKeys, 8)

	done := runAsync(newEngine(cfg), keys, sink)

	for _, r := range "ping" {
		keys <- relay.Char(r)
	}
	keys <- relay.Enter

	// Once from the tty echo, once from cat.
	require.Eventually(t, func() bool {
		return strings.Count(sink.String(), "ping") >= 2
	}, 10*time.Second, 10*time.Millisecond, "output so far: %q", sink.String())

	keys <- relay.Escape
	r := waitRun(t, done)

	require.NoError(t, r.err)
	assert.NotEqual(t, 0, r.res.ExitCode, "cat was stopped, not exited")
	t.Logf("[TEST] cat ended with code=%d signal=%q", r.res.ExitCode, r.res.ExitSignal)
}

func TestRunEscapeEndsLiveSession(t *testing.T) {
	cfg := testConfig(t, "sleep", "30")
	keys := make(chanKeys, 1)
	keys <- relay.Escape

	start := time.Now()
	r := waitRun(t, runAsync(newEngine(cfg), keys, &textSink{}))

	require.NoError(t, r.err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NotEmpty(t, r.res.ExitSignal, "sleep is killed by a signal")
}

func TestRunContextCancel(t *testing.T) {
	cfg := testConfig(t, "sleep", "30")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := newEngine(cfg).Run(ctx, make(chanKeys), &textSink{})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("session ignored cancellation")
	}
}

func TestRunClearScreen(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `printf 'a\033[2Jb'`)
	sink := &textSink{}

	r := waitRun(t, runAsync(newEngine(cfg), make(chanKeys), sink))

	require.NoError(t, r.err)
	assert.Equal(t, "ab", sink.String())
	assert.Equal(t, 1, sink.clears)
	assert.Equal(t, render.Cursor{Row: 0, Col: 1}, r.res.Cursor)
}

func TestRunBoundedQueue(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `i=0; while [ $i -lt 200 ]; do printf 'x'; i=$((i+1)); done`)
	cfg.QueueCapacity = 4
	sink := &textSink{}

	r := waitRun(t, runAsync(newEngine(cfg), make(chanKeys), sink))

	require.NoError(t, r.err)
	assert.Equal(t, strings.Repeat("x", 200), sink.String())
}

func TestRunTeardownWithLingeringJob(t *testing.T) {
	// The job ignores SIGHUP and keeps the tty open after the shell is gone,
	// so the pump never sees end of stream by itself.
	cfg := testConfig(t, "sh", "-c", `(trap '' HUP; exec sleep 5) & echo hi; exec sleep 30`)
	cfg.ShutdownTimeout = config.Duration(2 * time.Second)
	sink := &textSink{}
	keys := make(chanKeys, 1)

	done := runAsync(newEngine(cfg), keys, sink)
	require.Eventually(t, func() bool {
		return strings.Contains(sink.String(), "hi")
	}, 10*time.Second, 10*time.Millisecond)

	start := time.Now()
	keys <- relay.Escape
	r := waitRun(t, done)
	elapsed := time.Since(start)

	require.NoError(t, r.err)
	assert.False(t, r.res.Detached, "closing the pty must release the pump")
	assert.Less(t, elapsed, 2*time.Second)
	assert.Positive(t, r.res.BytesRead)
	assert.NotEmpty(t, r.res.ExitSignal)
	t.Logf("[TEST] teardown took %v", elapsed)
}

// stuckSink blocks in its first EmitCharacter until released.
type stuckSink struct {
	textSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stuckSink) EmitCharacter(r rune) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.textSink.EmitCharacter(r)
}

func TestRunDetachesStuckRenderer(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `printf 'abc'; exec sleep 30`)
	cfg.ShutdownTimeout = config.Duration(300 * time.Millisecond)
	sink := &stuckSink{entered: make(chan struct{}), release: make(chan struct{})}
	keys := make(chanKeys, 1)

	done := runAsync(newEngine(cfg), keys, sink)
	select {
	case <-sink.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("nothing was rendered")
	}

	keys <- relay.Escape
	r := waitRun(t, done)
	require.NoError(t, r.err)
	assert.True(t, r.res.Detached)

	// Once Run has returned the consumer must not draw again.
	close(sink.release)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "a", sink.String())
}

func TestRunCursorObserver(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `printf 'ab'`)
	var (
		mu    sync.Mutex
		moves []render.Cursor
	)
	e := New(cfg, Options{
		Logger: logging.Discard(),
		OnCursor: func(c render.Cursor) {
			mu.Lock()
			moves = append(moves, c)
			mu.Unlock()
		},
	})

	r := waitRun(t, runAsync(e, make(chanKeys), &textSink{}))
	require.NoError(t, r.err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []render.Cursor{{Row: 0, Col: 1}, {Row: 0, Col: 2}}, moves)
}

func TestRunSinkFailure(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", `printf 'x'; exec sleep 30`)
	boom := errors.New("display gone")
	sink := &textSink{err: boom}

	r := waitRun(t, runAsync(newEngine(cfg), make(chanKeys), sink))

	require.ErrorIs(t, r.err, boom)
	assert.NotEmpty(t, r.res.ExitSignal, "the shell is stopped when rendering fails")
}

func TestRunSetupErrors(t *testing.T) {
	t.Run("missing shell", func(t *testing.T) {
		cfg := testConfig(t, "/nonexistent/shell")
		res, err := newEngine(cfg).Run(context.Background(), make(chanKeys), &textSink{})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, pty.ErrSpawn)
		assert.True(t, IsSetupError(err))
	})

	t.Run("missing work dir", func(t *testing.T) {
		cfg := testConfig(t, "sh")
		cfg.WorkDir = "/nonexistent/dir"
		_, err := newEngine(cfg).Run(context.Background(), make(chanKeys), &textSink{})
		assert.ErrorIs(t, err, pty.ErrSpawn)
	})
}

func TestCommandDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd, err := newEngine(cfg).command()
	require.NoError(t, err)
	assert.Equal(t, pty.DefaultShell(), cmd.Path)
	assert.NotEmpty(t, cmd.Dir)
}

func TestIsSetupError(t *testing.T) {
	assert.False(t, IsSetupError(nil))
	assert.False(t, IsSetupError(relay.ErrWriteFailure))
	assert.True(t, IsSetupError(pty.ErrPtyAllocation))
}
