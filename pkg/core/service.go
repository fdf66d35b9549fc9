package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// DefaultEventBufferSize is the broker buffer used by Watch when none is configured.
const DefaultEventBufferSize = 100

// Service handles the business rules for notes on top of a Store.
type Service struct {
	repo            Store
	logger          *slog.Logger
	eventBufferSize int
	now             func() time.Time
	mu              sync.RWMutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEventBufferSize sets the size of the Watch broker buffer.
func WithEventBufferSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.eventBufferSize = size
		}
	}
}

// WithServiceLogger sets the logger used by the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (used by Stats).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service.
func NewService(repo Store, opts ...ServiceOption) *Service {
	s := &Service{
		repo:            repo,
		logger:          slog.Default(),
		eventBufferSize: DefaultEventBufferSize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.repo
}

// ListNotes retrieves all notes.
func (s *Service) ListNotes(ctx context.Context) ([]Note, error) {
	return s.repo.List(ctx)
}

// GetNote retrieves a note by ID.
func (s *Service) GetNote(ctx context.Context, id string) (Note, error) {
	if strings.TrimSpace(id) == "" {
		return Note{}, &ValidationError{Field: "id"}
	}
	return s.repo.Get(ctx, id)
}

// CreateNote validates presence of title and content before touching the store.
func (s *Service) CreateNote(ctx context.Context, fields NoteFields) (Note, error) {
	if fields.Title == "" {
		return Note{}, &ValidationError{Field: "title"}
	}
	if fields.Content == "" {
		return Note{}, &ValidationError{Field: "content"}
	}
	return s.repo.Create(ctx, fields)
}

// UpdateNote replaces title and content of an existing note.
func (s *Service) UpdateNote(ctx context.Context, id string, fields NoteFields) (Note, error) {
	if strings.TrimSpace(id) == "" {
		return Note{}, &ValidationError{Field: "id"}
	}
	return s.repo.Update(ctx, id, fields)
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id"}
	}
	return s.repo.Delete(ctx, id)
}

// Count returns the number of notes in the collection.
func (s *Service) Count(ctx context.Context) (int, error) {
	notes, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(notes), nil
}

// Stats computes aggregate creation statistics over the collection.
func (s *Service) Stats(ctx context.Context) (NoteStats, error) {
	notes, err := s.repo.List(ctx)
	if err != nil {
		return NoteStats{}, err
	}
	return ComputeStats(notes, s.now()), nil
}

// Watch observes changes in the store if supported.
// The adapter stream is decoupled through a buffered broker so a slow consumer
// does not stall the store's writers.
func (s *Service) Watch(ctx context.Context) (<-chan ChangeBatch, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, ErrNotWatchable
	}

	upstream, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	size := s.eventBufferSize
	s.mu.RUnlock()

	out := make(chan ChangeBatch, size)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case batch, ok := <-upstream:
				if !ok {
					return nil
				}
				select {
				case out <- batch:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("change broker failed", "error", err)
	}))

	return out, nil
}
