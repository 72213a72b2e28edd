package session

import "context"

// Capability names a device permission the platform may prompt for.
type Capability string

const (
	CapabilityMicrophone Capability = "microphone"
	CapabilitySpeech     Capability = "speech"
)

// PermissionProvider asks the platform for capabilities. It is invoked once
// at startup; sessions do not re-check.
type PermissionProvider interface {
	RequestPermissions(ctx context.Context, caps []Capability) (map[Capability]bool, error)
}

// Recorder captures microphone audio to a file.
type Recorder interface {
	HasPermission(ctx context.Context) bool
	Start(ctx context.Context, path string) error
	Stop(ctx context.Context) error
}

// Transcriber performs continuous speech recognition. Listen returns once
// recognition has started; onPartial is then called from another goroutine
// with the full interim text each time it changes.
type Transcriber interface {
	Initialize(ctx context.Context) (bool, error)
	Listen(ctx context.Context, onPartial func(text string)) error
	Stop(ctx context.Context) error
}

// Player plays a recorded audio file.
type Player interface {
	Play(ctx context.Context, path string) error
}
