package note

import (
	"context"
	"errors"
	"time"
)

// Repository is the storage contract notes are persisted through.
type Repository interface {
	// Insert stores n, replacing any note with the same id.
	Insert(ctx context.Context, n Note) error
	// List returns every note, newest first.
	List(ctx context.Context) ([]Note, error)
	// Delete removes the note with the given id. A missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// Service handles note creation rules on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// AddText creates and stores a text note. Blank input is rejected with
// ErrEmptyContent and nothing is stored.
func (s *Service) AddText(ctx context.Context, content string) (Note, error) {
	n, err := NewText(content, s.now())
	if err != nil {
		return Note{}, err
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return Note{}, err
	}
	return n, nil
}

// List returns all notes, newest first.
func (s *Service) List(ctx context.Context) ([]Note, error) {
	return s.repo.List(ctx)
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("note ID cannot be empty")
	}
	return s.repo.Delete(ctx, id)
}
