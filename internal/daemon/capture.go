package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/voxnote/internal/session"
)

// ErrNotConnected is returned while no daemon connection is attached.
var ErrNotConnected = errors.New("daemon not connected")

// finalDrainTimeout bounds how long Transcriber.Stop waits for the daemon's
// final result after transcribe_stop.
var finalDrainTimeout = time.Second

var (
	_ session.PermissionProvider = (*Capture)(nil)
	_ session.Recorder           = (*Capture)(nil)
	_ session.Player             = (*Capture)(nil)
	_ session.Transcriber        = (*Transcriber)(nil)
)

// Capture exposes the daemon's microphone, recognizer and playback as the
// session capability interfaces. The command connection is attached and
// detached by the caller as the daemon comes and goes; the partial-result
// stream uses a dedicated connection per Listen.
type Capture struct {
	socketPath string
	locale     string
	logger     *slog.Logger

	mu     sync.Mutex
	client *Client
	stream *transcription
}

// transcription is the event connection of one Listen call.
type transcription struct {
	client   *Client
	done     chan struct{} // closed when the reader returns
	stopping atomic.Bool
}

// NewCapture creates a Capture for the daemon at socketPath.
func NewCapture(socketPath, locale string, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Capture{socketPath: socketPath, locale: locale, logger: logger}
}

// SocketPath returns the daemon socket this Capture talks to.
func (c *Capture) SocketPath() string { return c.socketPath }

// Attach sets the command connection, closing any previous one.
func (c *Capture) Attach(client *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.client != client {
		c.client.Close()
	}
	c.client = client
}

// Detach closes and forgets the command connection and any event stream.
func (c *Capture) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if c.stream != nil {
		c.stream.client.Close()
		c.stream = nil
	}
}

// Connected reports whether a command connection is attached.
func (c *Capture) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

func (c *Capture) do(ctx context.Context, cmd Command) (Response, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return Response{}, ErrNotConnected
	}

	resp, err := client.Do(ctx, cmd)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", cmd.Cmd, err)
	}
	if err := resp.Err(); err != nil {
		return resp, fmt.Errorf("%s: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// RequestPermissions asks the daemon to prompt for caps and reports which
// were granted. Capabilities the daemon does not mention count as denied.
func (c *Capture) RequestPermissions(ctx context.Context, caps []session.Capability) (map[session.Capability]bool, error) {
	names := make([]string, len(caps))
	for i, cp := range caps {
		names[i] = string(cp)
	}

	resp, err := c.do(ctx, Command{Cmd: CmdPermissions, Capabilities: names})
	if err != nil {
		return nil, err
	}

	granted := make(map[session.Capability]bool, len(caps))
	for _, cp := range caps {
		granted[cp] = resp.Granted[string(cp)]
	}
	return granted, nil
}

// HasPermission reports whether microphone access is currently granted.
func (c *Capture) HasPermission(ctx context.Context) bool {
	resp, err := c.do(ctx, Command{Cmd: CmdStatus})
	if err != nil {
		c.logger.Debug("permission check failed", "err", err)
		return false
	}
	return resp.Granted[string(session.CapabilityMicrophone)]
}

// Start begins recording to path.
func (c *Capture) Start(ctx context.Context, path string) error {
	_, err := c.do(ctx, Command{Cmd: CmdRecordStart, Path: path})
	return err
}

// Stop ends the current recording.
func (c *Capture) Stop(ctx context.Context) error {
	_, err := c.do(ctx, Command{Cmd: CmdRecordStop})
	return err
}

// Play plays the audio file at path.
func (c *Capture) Play(ctx context.Context, path string) error {
	_, err := c.do(ctx, Command{Cmd: CmdPlay, Path: path})
	return err
}

// Transcriber returns the speech side of the daemon. It shares the command
// connection with c.
func (c *Capture) Transcriber() *Transcriber {
	return &Transcriber{capture: c}
}

// Transcriber adapts the daemon recognizer to session.Transcriber. It is a
// separate type because its Stop differs from the recorder's.
type Transcriber struct {
	capture *Capture
}

// Initialize checks that the recognizer is available for the locale.
func (t *Transcriber) Initialize(ctx context.Context) (bool, error) {
	resp, err := t.capture.do(ctx, Command{Cmd: CmdTranscribeInit, Locale: t.capture.locale})
	if err != nil {
		return false, err
	}
	return resp.Available != nil && *resp.Available, nil
}

// Listen opens an event stream, starts recognition and calls onPartial
// from a background goroutine for every partial or final result.
func (t *Transcriber) Listen(ctx context.Context, onPartial func(string)) error {
	c := t.capture

	evClient, err := Connect(c.socketPath)
	if err != nil {
		return err
	}
	if err := evClient.Subscribe(EventPartial, EventFinal, EventError); err != nil {
		evClient.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s := &transcription{client: evClient, done: make(chan struct{})}
	c.mu.Lock()
	if c.stream != nil {
		c.stream.client.Close()
	}
	c.stream = s
	c.mu.Unlock()

	go c.readPartials(s, onPartial)

	if _, err := c.do(ctx, Command{Cmd: CmdTranscribe, Locale: c.locale}); err != nil {
		c.closeEvents(s)
		return err
	}
	return nil
}

// Stop ends recognition. The event stream stays open until the daemon sends
// its final result, or finalDrainTimeout passes, so the last words are
// delivered before Stop returns.
func (t *Transcriber) Stop(ctx context.Context) error {
	c := t.capture

	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()
	if s != nil {
		s.stopping.Store(true)
	}

	_, err := c.do(ctx, Command{Cmd: CmdTranscribeStop})
	if s == nil {
		return err
	}
	if err == nil {
		s.drain(ctx, finalDrainTimeout)
	}
	c.closeEvents(s)
	return err
}

func (s *transcription) drain(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Capture) closeEvents(s *transcription) {
	c.mu.Lock()
	if c.stream == s {
		c.stream = nil
	}
	c.mu.Unlock()
	s.client.Close()
}

func (c *Capture) readPartials(s *transcription, onPartial func(string)) {
	defer close(s.done)
	for {
		e, err := s.client.ReadEvent()
		if err != nil {
			c.logger.Debug("transcription stream ended", "err", err)
			return
		}
		switch e.Event {
		case EventPartial:
			onPartial(e.Text)
		case EventFinal:
			onPartial(e.Text)
			if s.stopping.Load() {
				return
			}
		case EventError:
			c.logger.Warn("daemon transcription error", "message", e.Message)
		}
	}
}
