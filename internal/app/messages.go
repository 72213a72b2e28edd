package app

import (
	"github.com/jwulff/voxnote/internal/daemon"
	"github.com/jwulff/voxnote/internal/note"
	"github.com/jwulff/voxnote/internal/session"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (permissions, record, play)
	EvClient *daemon.Client // for status and error events
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// PermissionsMsg carries the result of the startup permission prompt.
type PermissionsMsg struct {
	Granted map[session.Capability]bool
	Err     error
}

// NotesLoadedMsg carries the full note list read from the store.
type NotesLoadedMsg struct {
	Notes []note.Note
	Err   error
}

// NoteSavedMsg is sent after a text note was stored.
type NoteSavedMsg struct {
	Note note.Note
}

// NoteDeletedMsg is sent after a note was removed.
type NoteDeletedMsg struct {
	ID string
}

// StoreChangedMsg signals that another process wrote the database.
type StoreChangedMsg struct{}

// SessionStartedMsg carries the outcome of starting a recording session.
type SessionStartedMsg struct {
	Partials <-chan string
	Err      error
}

// PartialTextMsg updates the live transcript of the active session.
type PartialTextMsg struct {
	Text string
	ch   <-chan string
}

// PartialsClosedMsg is sent when the session's partial stream ends.
type PartialsClosedMsg struct {
	ch <-chan string
}

// SessionStoppedMsg carries the outcome of stopping a session. Note is nil
// when nothing was said.
type SessionStoppedMsg struct {
	Note *note.Note
	Err  error
}

// PlayingMsg is sent once the daemon accepted a playback request.
type PlayingMsg struct {
	Note note.Note
}

// ErrorMsg reports a failed user action. It is shown as a transient error.
type ErrorMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
