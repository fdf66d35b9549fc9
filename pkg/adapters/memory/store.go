// Package memory provides an in-process note store with a synchronous change
// stream. Nothing is persisted; it backs tests and the "memory" adapter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/oklog/ulid/v2"

	"github.com/aretw0/notesync/pkg/core"
)

// Store implements core.Store and core.Watchable in memory.
type Store struct {
	mu       sync.Mutex
	notes    map[string]core.Note
	watchers map[int]*watcher
	nextID   int
	now      func() time.Time
	failWith error
}

type watcher struct {
	ch   chan core.ChangeBatch
	done <-chan struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		notes:    make(map[string]core.Note),
		watchers: make(map[int]*watcher),
		now:      time.Now,
	}
}

// FailWith makes every subsequent write return err (nil restores normal
// behaviour). It simulates an unavailable backend.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Initialize implements core.Store.
func (s *Store) Initialize(ctx context.Context) error { return nil }

// List implements core.Store. Notes are ordered by creation time.
func (s *Store) List(ctx context.Context) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := make([]core.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, id string) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, core.ErrNotFound
	}
	return n, nil
}

// Create implements core.Store.
func (s *Store) Create(ctx context.Context, fields core.NoteFields) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return core.Note{}, s.failWith
	}

	created := fields.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	n := core.Note{
		ID:        ulid.Make().String(),
		Title:     fields.Title,
		Content:   fields.Content,
		CreatedAt: created,
	}
	s.notes[n.ID] = n
	s.emit(ctx, core.ChangeBatch{core.Added(n)})
	return n, nil
}

// Update implements core.Store.
func (s *Store) Update(ctx context.Context, id string, fields core.NoteFields) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return core.Note{}, s.failWith
	}

	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, core.ErrNotFound
	}
	n.Title = fields.Title
	n.Content = fields.Content
	n.UpdatedAt = s.now()
	s.notes[id] = n
	s.emit(ctx, core.ChangeBatch{core.Modified(n)})
	return n, nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}

	if _, ok := s.notes[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.notes, id)
	s.emit(ctx, core.ChangeBatch{core.Removed(id)})
	return nil
}

// Watch implements core.Watchable.
// Delivery is synchronous with the write: writers block until every watcher
// accepted the batch or went away.
func (s *Store) Watch(ctx context.Context) (<-chan core.ChangeBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	w := &watcher{ch: make(chan core.ChangeBatch), done: ctx.Done()}
	s.watchers[id] = w

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
		close(w.ch)
	}()

	return w.ch, nil
}

// emit must be called with s.mu held.
func (s *Store) emit(ctx context.Context, batch core.ChangeBatch) {
	for _, w := range s.watchers {
		select {
		case w.ch <- batch:
		case <-w.done:
		case <-ctx.Done():
		}
	}
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Notes    int `json:"notes"`
	Watchers int `json:"watchers"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{Notes: len(s.notes), Watchers: len(s.watchers)}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string { return "memory-store" }

var (
	_ core.Store                   = (*Store)(nil)
	_ core.Watchable               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
