// Package session coordinates a single voice-recording session: audio
// capture, live transcription and the audio note that results from them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/voxnote/internal/note"
)

// AudioExt is the container extension used for recordings.
const AudioExt = ".m4a"

var (
	// ErrCapabilityUnavailable is returned by Start when the microphone or
	// speech engine cannot be used.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrSessionActive is returned by Start while a session is listening.
	ErrSessionActive = errors.New("recording session already active")
	// ErrNoSession is returned by Stop when nothing is listening.
	ErrNoSession = errors.New("no active recording session")
)

// State is the coordinator's session state.
type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// NoteInserter persists finished recordings.
type NoteInserter interface {
	Insert(ctx context.Context, n note.Note) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithClock overrides the time source used for note timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDFunc overrides session id generation.
func WithIDFunc(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// Coordinator owns the transient state of at most one active session.
type Coordinator struct {
	recorder    Recorder
	transcriber Transcriber
	notes       NoteInserter
	audioDir    string
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	// op serializes Start and Stop; it is held across capability calls.
	op sync.Mutex

	// mu guards the fields below, which partial callbacks also touch.
	mu         sync.Mutex
	state      State
	sessionID  string
	audioPath  string
	transcript string
	partials   chan string
}

// New creates an idle Coordinator that writes recordings under audioDir.
func New(rec Recorder, tr Transcriber, notes NoteInserter, audioDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		recorder:    rec,
		transcriber: tr,
		notes:       notes,
		audioDir:    audioDir,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// State returns the current session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the active session id, or "" when idle.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Transcript returns the latest partial transcript of the active session.
func (c *Coordinator) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Start begins capture and transcription for a new session. The returned
// channel yields partial transcripts, each replacing the previous one; only
// the most recent unread update is kept. It is closed when the session stops.
func (c *Coordinator) Start(ctx context.Context) (<-chan string, error) {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() == StateListening {
		return nil, ErrSessionActive
	}

	if !c.recorder.HasPermission(ctx) {
		return nil, fmt.Errorf("%w: microphone permission denied", ErrCapabilityUnavailable)
	}
	available, err := c.transcriber.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: initialize speech: %w", ErrCapabilityUnavailable, err)
	}
	if !available {
		return nil, fmt.Errorf("%w: speech recognition not available", ErrCapabilityUnavailable)
	}

	if err := os.MkdirAll(c.audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	id := c.newID()
	path := filepath.Join(c.audioDir, id+AudioExt)

	if err := c.recorder.Start(ctx, path); err != nil {
		return nil, fmt.Errorf("%w: start recording: %w", ErrCapabilityUnavailable, err)
	}

	partials := make(chan string, 1)
	c.mu.Lock()
	c.state = StateListening
	c.sessionID = id
	c.audioPath = path
	c.transcript = ""
	c.partials = partials
	c.mu.Unlock()

	if err := c.transcriber.Listen(ctx, c.partialHandler(id)); err != nil {
		if stopErr := c.recorder.Stop(ctx); stopErr != nil {
			c.logger.Warn("stop recorder after failed listen", "session", id, "err", stopErr)
		}
		c.reset()
		c.removeAudio(id, path)
		return nil, fmt.Errorf("%w: start transcription: %w", ErrCapabilityUnavailable, err)
	}

	c.logger.Info("recording session started", "session", id, "path", path)
	return partials, nil
}

// partialHandler returns the transcription callback for session id. Updates
// for any other session are dropped.
func (c *Coordinator) partialHandler(id string) func(string) {
	return func(text string) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.state != StateListening || c.sessionID != id {
			return
		}
		c.transcript = text

		select {
		case c.partials <- text:
		default:
			// Replace the unread update.
			select {
			case <-c.partials:
			default:
			}
			c.partials <- text
		}
	}
}

// Stop ends the active session. A non-empty transcript is saved as an audio
// note and returned. An empty transcript creates no note, removes the partial
// recording and returns a nil note.
func (c *Coordinator) Stop(ctx context.Context) (*note.Note, error) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	id, path := c.sessionID, c.audioPath
	c.mu.Unlock()

	// Late partials still count until capture has stopped.
	if err := c.recorder.Stop(ctx); err != nil {
		c.logger.Warn("stop recorder", "session", id, "err", err)
	}
	if err := c.transcriber.Stop(ctx); err != nil {
		c.logger.Warn("stop transcriber", "session", id, "err", err)
	}

	text := c.reset()

	if strings.TrimSpace(text) == "" {
		c.logger.Info("recording session discarded", "session", id)
		c.removeAudio(id, path)
		return nil, nil
	}

	n, err := note.NewAudio(id, text, path, c.now())
	if err != nil {
		return nil, fmt.Errorf("build audio note: %w", err)
	}
	if err := c.notes.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}

	c.logger.Info("recording session saved", "session", id, "chars", len(text))
	return &n, nil
}

// reset returns to Idle, closes the partial stream and returns the final
// transcript.
func (c *Coordinator) reset() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.transcript
	if c.partials != nil {
		close(c.partials)
	}
	c.state = StateIdle
	c.sessionID = ""
	c.audioPath = ""
	c.transcript = ""
	c.partials = nil
	return text
}

func (c *Coordinator) removeAudio(id, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("remove discarded recording", "session", id, "path", path, "err", err)
	}
}
