package fs_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/fs"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/git"
)

// setupRepo creates an initialized gitless repository in a temp dir.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notes")
	cfg := fs.Config{
		Path:     path,
		AutoInit: true,
		Gitless:  true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Debounce: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo := fs.NewRepository(cfg)
	require.NoError(t, repo.Initialize(context.Background()))
	return repo, path
}

func TestRepository_CRUD(t *testing.T) {
	repo, path := setupRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, core.NoteFields{Title: "Groceries", Content: "Milk,eggs"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.FileExists(t, filepath.Join(path, created.ID+".md"))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, "Milk,eggs", got.Content)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	updated, err := repo.Update(ctx, created.ID, core.NoteFields{Title: "Groceries v2", Content: "Milk,eggs,bread"})
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt), "update keeps creation time")
	assert.False(t, updated.UpdatedAt.IsZero())

	notes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries v2", notes[0].Title)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(path, created.ID+".md"))
}

func TestRepository_UnknownAndInvalidIDs(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	for _, id := range []string{"missing", "../escape", "", ".."} {
		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, core.ErrNotFound, id)

		_, err = repo.Update(ctx, id, core.NoteFields{Title: "x", Content: "y"})
		assert.ErrorIs(t, err, core.ErrNotFound, id)

		assert.ErrorIs(t, repo.Delete(ctx, id), core.ErrNotFound, id)
	}
}

func TestRepository_ListOrderAndForeignFiles(t *testing.T) {
	repo, path := setupRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second, err := repo.Create(ctx, core.NoteFields{Title: "second", Content: "b", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	first, err := repo.Create(ctx, core.NoteFields{Title: "first", Content: "a", CreatedAt: base})
	require.NoError(t, err)

	// Files written by hand: plain markdown, a non-note and an atomic-write leftover.
	require.NoError(t, os.WriteFile(filepath.Join(path, "handwritten.md"), []byte("just text"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "readme.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(path, fs.TempFilePrefix+"123.md"), []byte("ignored"), 0644))

	notes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	ids := []string{notes[0].ID, notes[1].ID, notes[2].ID}
	assert.Contains(t, ids, "handwritten")
	// Notes without a creation time sort first.
	assert.Equal(t, "handwritten", notes[0].ID)
	assert.Equal(t, "handwritten", notes[0].Title, "title falls back to the id")
	assert.Equal(t, first.ID, notes[1].ID)
	assert.Equal(t, second.ID, notes[2].ID)
}

func TestRepository_FrontMatterOnDisk(t *testing.T) {
	repo, path := setupRepo(t)

	n, err := repo.Create(context.Background(), core.NoteFields{Title: "Plan", Content: "# Heading\n\nbody"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(path, n.ID+".md"))
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "---\ntitle: Plan\n"), text)
	assert.True(t, strings.HasSuffix(text, "---\n# Heading\n\nbody"), text)
}

func TestRepository_ReadOnly(t *testing.T) {
	_, path := setupRepo(t)
	ro := fs.NewRepository(fs.Config{Path: path, ReadOnly: true, Gitless: true})
	require.NoError(t, ro.Initialize(context.Background()))

	_, err := ro.Create(context.Background(), core.NoteFields{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, core.ErrReadOnly)
	_, err = ro.Update(context.Background(), "any", core.NoteFields{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, core.ErrReadOnly)
	assert.ErrorIs(t, ro.Delete(context.Background(), "any"), core.ErrReadOnly)

	notes, err := ro.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestRepository_InitializeErrors(t *testing.T) {
	t.Run("must exist", func(t *testing.T) {
		repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true, Gitless: true})
		assert.Error(t, repo.Initialize(context.Background()))
	})

	t.Run("invalid pattern", func(t *testing.T) {
		repo := fs.NewRepository(fs.Config{Path: t.TempDir(), Pattern: "[", Gitless: true})
		assert.Error(t, repo.Initialize(context.Background()))
	})

	t.Run("pattern narrows selection", func(t *testing.T) {
		repo, path := setupRepo(t, func(c *fs.Config) { c.Pattern = "note-*.md" })
		require.NoError(t, os.WriteFile(filepath.Join(path, "note-a.md"), []byte("a"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(path, "other.md"), []byte("b"), 0644))

		notes, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "note-a", notes[0].ID)
	})
}

func TestRepository_GitVersioning(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}

	repo, path := setupRepo(t, func(c *fs.Config) {
		c.Gitless = false
		c.AuthorName = "notesync-test"
		c.AuthorEmail = "test@example.com"
	})
	client := git.NewClient(path, filepath.Join(fs.DefaultSystemDir, "git.lock"), nil)
	client.AuthorName = "notesync-test"
	client.AuthorEmail = "test@example.com"
	ctx := context.Background()

	assert.DirExists(t, filepath.Join(path, ".git"))
	ignore, err := os.ReadFile(filepath.Join(path, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), fs.DefaultSystemDir+"/")

	n, err := repo.Create(ctx, core.NoteFields{Title: "Hello", Content: "world"})
	require.NoError(t, err)

	reasonCtx := context.WithValue(ctx, core.ChangeReasonKey, "docs: rewrite greeting")
	_, err = repo.Update(reasonCtx, n.ID, core.NoteFields{Title: "Hello", Content: "there"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, n.ID))

	subjects, err := client.Log(3)
	require.NoError(t, err)
	require.Len(t, subjects, 3)
	assert.Equal(t, "feat(notes): delete "+n.ID, subjects[0])
	assert.Equal(t, "docs: rewrite greeting", subjects[1])
	assert.Equal(t, "feat(notes): create Hello", subjects[2])

	status, err := client.Status()
	require.NoError(t, err)
	assert.Empty(t, status, "every change is committed")
}
