// Package daemon provides the client and protocol types for communicating with
// voxnote-daemon, which owns the microphone, audio playback and the speech
// recognizer, over a Unix socket using NDJSON.
package daemon

// Command names understood by the daemon.
const (
	CmdPermissions    = "permissions"
	CmdStatus         = "status"
	CmdRecordStart    = "record_start"
	CmdRecordStop     = "record_stop"
	CmdTranscribeInit = "transcribe_init"
	CmdTranscribe     = "transcribe_start"
	CmdTranscribeStop = "transcribe_stop"
	CmdSubscribe      = "subscribe"
	CmdPlay           = "play"
)

// Event names streamed to subscribers.
const (
	EventPartial = "partial"
	EventFinal   = "final"
	EventStatus  = "status"
	EventError   = "error"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd          string   `json:"cmd"`
	Locale       string   `json:"locale,omitempty"`
	Path         string   `json:"path,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Events       []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Granted   map[string]bool `json:"granted,omitempty"`
	Available *bool           `json:"available,omitempty"`
	Recording *bool           `json:"recording,omitempty"`
	Status    string          `json:"status,omitempty"`
	Path      string          `json:"path,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event     string `json:"event"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
	Transient *bool  `json:"transient,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building responses.
func BoolPtr(b bool) *bool { return &b }
