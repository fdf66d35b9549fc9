// Package fs implements the note store on the local filesystem: one Markdown
// file with YAML front matter per note, optionally versioned with git, and a
// change stream driven by fsnotify.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/git"
)

const (
	// DefaultSystemDir holds the lock file and other private state.
	DefaultSystemDir = ".notesync"
	// DefaultPattern selects note files inside the store directory.
	DefaultPattern = "*.md"
	// DefaultDebounce is the window in which file events are coalesced.
	DefaultDebounce = 50 * time.Millisecond

	noteExt = ".md"
)

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	AutoInit  bool // create the directory (and git repo) when missing
	MustExist bool // fail if the directory does not exist
	Gitless   bool // disable git versioning
	ReadOnly  bool
	Logger    *slog.Logger
	SystemDir string        // e.g. ".notesync"
	Pattern   string        // glob matched against file names, e.g. "*.md"
	Debounce  time.Duration // watcher coalescing window

	// AuthorName and AuthorEmail are used for commits when versioning is on.
	AuthorName  string
	AuthorEmail string

	// ErrorHandler receives runtime watcher failures that are otherwise only logged.
	ErrorHandler func(error)
}

// Repository implements core.Store and core.Watchable using the filesystem.
type Repository struct {
	Path   string
	git    *git.Client
	config Config

	mu            sync.RWMutex // guards watcher bookkeeping
	writeMu       sync.Mutex   // serializes writes (and git commits)
	watchers      int
	watcherActive bool
	lastReconcile *time.Time
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	client := git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger)
	client.AuthorName = config.AuthorName
	client.AuthorEmail = config.AuthorEmail

	return &Repository{
		Path:   config.Path,
		git:    client,
		config: config,
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init).
func (r *Repository) Initialize(ctx context.Context) error {
	if !doublestar.ValidatePattern(r.config.Pattern) {
		return fmt.Errorf("invalid note pattern: %q", r.config.Pattern)
	}

	if r.config.ReadOnly {
		return nil
	}

	// 1. Directory Initialization
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", r.Path)
		}
	} else {
		if err := os.MkdirAll(r.Path, 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Join(r.Path, r.config.SystemDir), 0755); err != nil {
		return fmt.Errorf("failed to create system directory: %w", err)
	}

	// 2. Git Initialization
	if r.config.Gitless {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		// Fresh repo: commit the .gitignore to start clean.
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		msg := git.FormatCommitMessage(git.CommitTypeChore, "", fmt.Sprintf("configure %s ignore", r.config.SystemDir), "")
		if err := r.git.Commit(msg); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}

	return nil
}

func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	ignoreEntry := r.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == ignoreEntry {
			return false, nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}

	if _, err := f.WriteString(ignoreEntry + "\n"); err != nil {
		return false, err
	}

	return true, nil
}

// List returns every note file matching the pattern, ordered by creation time.
// Unreadable files are logged and skipped.
func (r *Repository) List(ctx context.Context) ([]core.Note, error) {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	notes := make([]core.Note, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		id, ok := r.idFromName(entry.Name())
		if !ok {
			continue
		}
		n, err := r.read(id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable note", "id", id, "error", err)
			continue
		}
		notes = append(notes, n)
	}

	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

// Get retrieves a note by ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, error) {
	if !validID(id) {
		return core.Note{}, core.ErrNotFound
	}
	return r.read(id)
}

// Create writes a new note file named after a fresh ULID.
//
// Workflow:
//  1. Assign ID and creation time.
//  2. Serialize to Markdown + front matter and write atomically.
//  3. (If git enabled) 'git add' and 'git commit'.
func (r *Repository) Create(ctx context.Context, fields core.NoteFields) (core.Note, error) {
	if r.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	created := fields.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	n := core.Note{
		ID:        ulid.Make().String(),
		Title:     fields.Title,
		Content:   fields.Content,
		CreatedAt: created,
	}

	if err := r.write(n); err != nil {
		return core.Note{}, err
	}
	if err := r.commit(ctx, r.filename(n.ID), "create "+n.Title); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// Update rewrites title and content of an existing note, keeping CreatedAt.
func (r *Repository) Update(ctx context.Context, id string, fields core.NoteFields) (core.Note, error) {
	if r.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
	}
	if !validID(id) {
		return core.Note{}, core.ErrNotFound
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	n, err := r.read(id)
	if err != nil {
		return core.Note{}, err
	}
	n.Title = fields.Title
	n.Content = fields.Content
	n.UpdatedAt = time.Now()

	if err := r.write(n); err != nil {
		return core.Note{}, err
	}
	if err := r.commit(ctx, r.filename(id), "update "+n.Title); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// Delete removes a note file (and records the removal in git when enabled).
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if !validID(id) {
		return core.ErrNotFound
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	path := filepath.Join(r.Path, r.filename(id))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to stat note %s: %w", id, err)
	}

	if r.config.Gitless {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete note %s: %w", id, err)
		}
		return nil
	}

	unlock, err := r.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := r.git.Rm(r.filename(id)); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return r.git.Commit(r.commitMessage(ctx, "delete "+id))
}

func (r *Repository) filename(id string) string {
	return id + noteExt
}

// idFromName maps a file name to a note ID. Temp files and names that do not
// match the configured pattern are rejected.
func (r *Repository) idFromName(name string) (string, bool) {
	if strings.HasPrefix(name, TempFilePrefix) || strings.HasPrefix(name, ".") {
		return "", false
	}
	if filepath.Ext(name) != noteExt {
		return "", false
	}
	if ok, err := doublestar.Match(r.config.Pattern, name); err != nil || !ok {
		return "", false
	}
	id := strings.TrimSuffix(name, noteExt)
	return id, validID(id)
}

func (r *Repository) read(id string) (core.Note, error) {
	data, err := os.ReadFile(filepath.Join(r.Path, r.filename(id)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Note{}, core.ErrNotFound
		}
		return core.Note{}, fmt.Errorf("failed to read note %s: %w", id, err)
	}
	n, err := decodeNote(id, data)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to decode note %s: %w", id, err)
	}
	return n, nil
}

func (r *Repository) write(n core.Note) error {
	data, err := encodeNote(n)
	if err != nil {
		return fmt.Errorf("failed to encode note %s: %w", n.ID, err)
	}
	return writeNoteFile(r.Path, n.ID, data)
}

func (r *Repository) commit(ctx context.Context, file, subject string) error {
	if r.config.Gitless {
		return nil
	}

	unlock, err := r.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire git lock: %w", err)
	}
	defer unlock()

	if err := r.git.Add(file); err != nil {
		return err
	}
	return r.git.Commit(r.commitMessage(ctx, subject))
}

// commitMessage honours a change reason carried on the context.
func (r *Repository) commitMessage(ctx context.Context, subject string) string {
	if reason, ok := ctx.Value(core.ChangeReasonKey).(string); ok && reason != "" {
		return git.AppendFooter(reason)
	}
	return git.FormatCommitMessage(git.CommitTypeFeat, "notes", subject, "")
}

// validID rejects anything that could escape the store directory.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}

var (
	_ core.Store     = (*Repository)(nil)
	_ core.Watchable = (*Repository)(nil)
)
