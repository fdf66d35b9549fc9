package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/sqlite"
	"github.com/aretw0/notesync/pkg/core"
)

func newStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notes.db")
	store := sqlite.New(sqlite.Config{Path: path, PollInterval: 10 * time.Millisecond})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStore_CRUD(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, core.NoteFields{Title: "Groceries", Content: "Milk,eggs"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.UpdatedAt.IsZero())

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, created.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	updated, err := store.Update(ctx, created.ID, core.NoteFields{Title: "Groceries v2", Content: "Milk"})
	require.NoError(t, err)
	assert.Equal(t, "Groceries v2", updated.Title)
	assert.False(t, updated.UpdatedAt.IsZero())

	notes, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_UnknownID(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "missing", core.NoteFields{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), core.ErrNotFound)
}

func TestStore_UniqueIDs(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := store.Create(ctx, core.NoteFields{Title: "t", Content: "c"})
		require.NoError(t, err)
		require.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
	}
}

func TestStore_Watch(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Written before the subscription: must not be reported.
	_, err := store.Create(ctx, core.NoteFields{Title: "old", Content: "old"})
	require.NoError(t, err)

	stream, err := store.Watch(ctx)
	require.NoError(t, err)

	n, err := store.Create(ctx, core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)
	_, err = store.Update(ctx, n.ID, core.NoteFields{Title: "A2", Content: "B"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, n.ID))

	var changes []core.Change
	deadline := time.After(2 * time.Second)
	for len(changes) < 1 || changes[len(changes)-1].Type != core.ChangeRemoved {
		select {
		case batch := <-stream:
			changes = append(changes, batch...)
		case <-deadline:
			t.Fatalf("timeout waiting for changes, got %v", changes)
		}
	}

	// The note is gone by the time the journal is read, so Added and
	// Modified may be skipped; Removed is always last.
	last := changes[len(changes)-1]
	assert.Equal(t, n.ID, last.ID)
	for _, c := range changes {
		assert.Equal(t, n.ID, c.ID)
	}
}

func TestStore_WatchSeesOtherConnections(t *testing.T) {
	store, path := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := store.Watch(ctx)
	require.NoError(t, err)

	// A second handle on the same file plays the role of another process.
	other := sqlite.New(sqlite.Config{Path: path})
	require.NoError(t, other.Initialize(ctx))
	defer other.Close()

	n, err := other.Create(ctx, core.NoteFields{Title: "remote", Content: "write"})
	require.NoError(t, err)

	select {
	case batch := <-stream:
		require.Len(t, batch, 1)
		assert.Equal(t, core.ChangeAdded, batch[0].Type)
		assert.Equal(t, n.ID, batch[0].Note.ID)
		assert.Equal(t, "remote", batch[0].Note.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change from other connection")
	}
}

func TestStore_ReadOnly(t *testing.T) {
	_, path := newStore(t)

	ro := sqlite.New(sqlite.Config{Path: path, ReadOnly: true})
	require.NoError(t, ro.Initialize(context.Background()))
	defer ro.Close()

	_, err := ro.Create(context.Background(), core.NoteFields{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestStore_WatchClosesOnCancel(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := store.Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}
