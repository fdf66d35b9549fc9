package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a, err := s.Create(ctx, core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)
	b, err := s.Create(ctx, core.NoteFields{Title: "C", Content: "D"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	updated, err := s.Update(ctx, a.ID, core.NoteFields{Title: "A2", Content: "B2"})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Title)
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
	assert.False(t, updated.UpdatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, a.ID), core.ErrNotFound)

	_, err = s.Update(ctx, "missing", core.NoteFields{Title: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	notes, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, b.ID, notes[0].ID)
}

func TestStore_KeepsProvidedCreatedAt(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n, err := memory.New().Create(context.Background(), core.NoteFields{Title: "t", Content: "c", CreatedAt: at})
	require.NoError(t, err)
	assert.True(t, n.CreatedAt.Equal(at))
}

func TestStore_WatchDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memory.New()
	stream, err := s.Watch(ctx)
	require.NoError(t, err)

	var got []core.Change
	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range stream {
			got = append(got, batch...)
			if len(got) == 3 {
				return
			}
		}
	}()

	n, err := s.Create(ctx, core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)
	_, err = s.Update(ctx, n.ID, core.NoteFields{Title: "A2", Content: "B"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, n.ID))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for changes")
	}

	require.Len(t, got, 3)
	assert.Equal(t, core.ChangeAdded, got[0].Type)
	assert.Equal(t, core.ChangeModified, got[1].Type)
	assert.Equal(t, "A2", got[1].Note.Title)
	assert.Equal(t, core.ChangeRemoved, got[2].Type)
	assert.Equal(t, n.ID, got[2].ID)
}

func TestStore_WatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := memory.New()

	stream, err := s.Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}

	// Writes must not block once the only watcher is gone.
	_, err = s.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	require.NoError(t, err)
}

func TestStore_FailWith(t *testing.T) {
	s := memory.New()
	boom := errors.New("backend down")
	s.FailWith(boom)

	_, err := s.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	assert.ErrorIs(t, err, boom)

	s.FailWith(nil)
	_, err = s.Create(context.Background(), core.NoteFields{Title: "A", Content: "B"})
	assert.NoError(t, err)
}
