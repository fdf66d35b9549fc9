package fs_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func TestRepository_ConcurrentWrites(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	ids := make(chan string, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.Create(ctx, core.NoteFields{Title: fmt.Sprintf("note %d", i), Content: "x"})
			assert.NoError(t, err)
			ids <- n.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	notes, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, writers)

	// Updates racing on one note leave it readable.
	target := notes[0]
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, target.ID, core.NoteFields{Title: fmt.Sprintf("v%d", i), Content: "y"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "y", got.Content)
}
