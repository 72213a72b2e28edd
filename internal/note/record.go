package note

import (
	"fmt"
	"time"
)

// Record column names.
const (
	FieldID        = "id"
	FieldType      = "type"
	FieldContent   = "content"
	FieldAudioPath = "audioPath"
	FieldCreatedAt = "createdAt"
)

// Record is the flat field mapping a note is stored as. Values are strings,
// int64 ordinals, or nil for an absent audio path.
type Record map[string]any

// ToRecord encodes n as a flat record.
func (n Note) ToRecord() Record {
	var audioPath any
	if n.Kind == KindAudio {
		audioPath = n.AudioPath
	}
	return Record{
		FieldID:        n.ID,
		FieldType:      int64(n.Kind),
		FieldContent:   n.Content,
		FieldAudioPath: audioPath,
		FieldCreatedAt: n.CreatedAt.UTC().Format(TimeLayout),
	}
}

// FromRecord decodes a record produced by ToRecord.
func FromRecord(r Record) (Note, error) {
	var n Note
	var err error

	if n.ID, err = requireString(r, FieldID); err != nil {
		return Note{}, err
	}

	ordinal, err := requireInt(r, FieldType)
	if err != nil {
		return Note{}, err
	}
	n.Kind = Kind(ordinal)

	if n.Content, err = requireString(r, FieldContent); err != nil {
		return Note{}, err
	}

	ts, err := requireString(r, FieldCreatedAt)
	if err != nil {
		return Note{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Note{}, fmt.Errorf("%w: createdAt %q: %v", ErrMalformedRecord, ts, err)
	}
	n.CreatedAt = createdAt.UTC()

	if raw, ok := r[FieldAudioPath]; ok && raw != nil {
		if n.AudioPath, ok = asString(raw); !ok {
			return Note{}, fmt.Errorf("%w: audioPath has type %T", ErrMalformedRecord, raw)
		}
	}

	if err := n.Validate(); err != nil {
		return Note{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	return n, nil
}

func requireString(r Record, field string) (string, error) {
	raw, ok := r[field]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedRecord, field)
	}
	s, ok := asString(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s has type %T", ErrMalformedRecord, field, raw)
	}
	return s, nil
}

func requireInt(r Record, field string) (int64, error) {
	raw, ok := r[field]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedRecord, field)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case Kind:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrMalformedRecord, field, raw)
	}
}

// asString accepts []byte because SQLite drivers may hand TEXT back as bytes.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
