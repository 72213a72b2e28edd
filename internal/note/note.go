// Package note defines the note entity and its flat record encoding.
package note

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes typed notes from voice recordings.
type Kind int

const (
	KindText Kind = iota
	KindAudio
)

// TimeLayout is the ISO-8601 form stored in the createdAt column. The
// fraction is fixed width so lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrMalformedRecord is returned when a stored record cannot be decoded.
	ErrMalformedRecord = errors.New("malformed note record")
	// ErrEmptyContent is returned when a note would be created without text.
	ErrEmptyContent = errors.New("note content is empty")
	// ErrInvalidNote is returned by Validate.
	ErrInvalidNote = errors.New("invalid note")
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindAudio
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return KindText, nil
	case "audio":
		return KindAudio, nil
	}
	return 0, fmt.Errorf("unknown note kind %q", s)
}

// MarshalText encodes k by name, so JSON output reads "text" or "audio".
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid note kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Note is a single user-created entry. Fields are never mutated once the
// note has been persisted.
type Note struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	AudioPath string    `json:"audioPath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewText builds a text note with a fresh id.
func NewText(content string, at time.Time) (Note, error) {
	if strings.TrimSpace(content) == "" {
		return Note{}, ErrEmptyContent
	}
	return Note{
		ID:        uuid.NewString(),
		Kind:      KindText,
		Content:   content,
		CreatedAt: normalize(at),
	}, nil
}

// NewAudio builds an audio note for a finished recording session.
func NewAudio(id, content, audioPath string, at time.Time) (Note, error) {
	if id == "" {
		return Note{}, errors.New("audio note id is empty")
	}
	if strings.TrimSpace(content) == "" {
		return Note{}, ErrEmptyContent
	}
	if audioPath == "" {
		return Note{}, errors.New("audio note has no audio path")
	}
	return Note{
		ID:        id,
		Kind:      KindAudio,
		Content:   content,
		AudioPath: audioPath,
		CreatedAt: normalize(at),
	}, nil
}

// Equal reports whether two notes carry the same values.
func (n Note) Equal(o Note) bool {
	return n.ID == o.ID &&
		n.Kind == o.Kind &&
		n.Content == o.Content &&
		n.AudioPath == o.AudioPath &&
		n.CreatedAt.Equal(o.CreatedAt)
}

// Validate reports whether n can be stored and read back: it needs an id,
// a known kind, an audio path exactly when it is an audio note, and a
// creation time whose year fits the four-digit timestamp column.
func (n Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNote)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: type %d out of range", ErrInvalidNote, int(n.Kind))
	}
	switch n.Kind {
	case KindText:
		if n.AudioPath != "" {
			return fmt.Errorf("%w: text note %s has an audio path", ErrInvalidNote, n.ID)
		}
	case KindAudio:
		if n.AudioPath == "" {
			return fmt.Errorf("%w: audio note %s has no audio path", ErrInvalidNote, n.ID)
		}
	}
	if y := n.CreatedAt.UTC().Year(); y < 0 || y > 9999 {
		return fmt.Errorf("%w: createdAt year %d out of range", ErrInvalidNote, y)
	}
	return nil
}

// Title returns the first line of the content, for single-line displays.
func (n Note) Title() string {
	line, _, _ := strings.Cut(strings.TrimSpace(n.Content), "\n")
	return line
}

// normalize drops the monotonic reading and location so a note survives a
// round trip through its record unchanged.
func normalize(t time.Time) time.Time {
	return t.Round(0).UTC()
}
