package core

import "context"

// Store defines the contract for persisting notes.
// Adhering to this interface keeps the realtime layer independent of the
// underlying storage mechanism (filesystem, SQLite, memory).
type Store interface {
	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error

	// List returns all notes in the collection.
	List(ctx context.Context) ([]Note, error)

	// Get retrieves a note by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (Note, error)

	// Create persists a new note, assigning its ID and creation time.
	Create(ctx context.Context, fields NoteFields) (Note, error)

	// Update replaces title and content of an existing note and stamps UpdatedAt.
	// Returns ErrNotFound if the note does not exist.
	Update(ctx context.Context, id string, fields NoteFields) (Note, error)

	// Delete removes a note. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// Watchable is implemented by stores that can stream changes of the collection.
type Watchable interface {
	// Watch subscribes to every change made to the collection after the call.
	// Batches are delivered in the order the store applied them.
	// The returned channel is closed when ctx is done or the store shuts down.
	Watch(ctx context.Context) (<-chan ChangeBatch, error)
}

// Closer is implemented by stores holding resources (file handles, DB pools).
type Closer interface {
	Close() error
}

type contextKey string

// ChangeReasonKey is the context key for passing a specific change reason
// (commit message) to versioned stores.
const ChangeReasonKey contextKey = "change_reason"
