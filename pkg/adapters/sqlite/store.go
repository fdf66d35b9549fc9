// Package sqlite implements the note store on top of an embedded SQLite
// database (modernc.org/sqlite, no cgo). Every write appends a row to a
// change journal in the same transaction; Watch polls that journal, so writes
// made by other processes sharing the file are observed as well.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/aretw0/notesync/pkg/core"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"
	// DefaultPollInterval is how often Watch reads the change journal.
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultBusyTimeout is applied as PRAGMA busy_timeout (milliseconds).
	DefaultBusyTimeout = 10_000
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER
);
CREATE TABLE IF NOT EXISTS changes (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	kind    TEXT NOT NULL,
	note_id TEXT NOT NULL,
	at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
`

// Config holds the configuration for the SQLite store.
type Config struct {
	// Path of the database file. ":memory:" is accepted for throwaway stores.
	Path         string
	ReadOnly     bool
	PollInterval time.Duration
	BusyTimeout  int
	Logger       *slog.Logger
}

// Store implements core.Store and core.Watchable on SQLite.
type Store struct {
	config Config
	db     *sql.DB
	now    func() time.Time

	mu       sync.RWMutex
	watchers int
	lastSeq  int64
}

// New creates a Store. The database is opened by Initialize.
func New(config Config) *Store {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = DefaultBusyTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{config: config, now: time.Now}
}

// Initialize opens the database, applies pragmas and creates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if s.config.Path != ":memory:" && !s.config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(s.config.Path), 0755); err != nil {
			return fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open(DriverName, s.config.Path)
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: pragmas are per connection and ":memory:" databases
	// are per connection too.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if !s.config.ReadOnly {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return fmt.Errorf("sqlite: schema: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: ping: %w", err)
	}

	s.db = db
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List implements core.Store.
func (s *Store) List(ctx context.Context) ([]core.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM notes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return notes, nil
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, id string) (core.Note, error) {
	return getNote(ctx, s.db, id)
}

// Create implements core.Store.
func (s *Store) Create(ctx context.Context, fields core.NoteFields) (core.Note, error) {
	if s.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
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

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, title, content, created_at) VALUES (?, ?, ?, ?)`,
			n.ID, n.Title, n.Content, n.CreatedAt.UnixNano()); err != nil {
			return err
		}
		return s.journal(ctx, tx, core.ChangeAdded, n.ID)
	})
	if err != nil {
		return core.Note{}, fmt.Errorf("sqlite: create: %w", err)
	}
	return n, nil
}

// Update implements core.Store.
func (s *Store) Update(ctx context.Context, id string, fields core.NoteFields) (core.Note, error) {
	if s.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
	}

	var n core.Note
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
			fields.Title, fields.Content, s.now().UnixNano(), id)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.ErrNotFound
		}
		if n, err = getNote(ctx, tx, id); err != nil {
			return err
		}
		return s.journal(ctx, tx, core.ChangeModified, id)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Note{}, err
		}
		return core.Note{}, fmt.Errorf("sqlite: update %s: %w", id, err)
	}
	return n, nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.ErrNotFound
		}
		return s.journal(ctx, tx, core.ChangeRemoved, id)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("sqlite: delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) journal(ctx context.Context, tx *sql.Tx, kind core.ChangeType, id string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO changes (kind, note_id, at) VALUES (?, ?, ?)`,
		string(kind), id, s.now().UnixNano())
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getNote(ctx context.Context, q querier, id string) (core.Note, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, core.ErrNotFound
	}
	if err != nil {
		return core.Note{}, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	return n, nil
}

func scanNote(row scanner) (core.Note, error) {
	var (
		n       core.Note
		created int64
		updated sql.NullInt64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &created, &updated); err != nil {
		return core.Note{}, err
	}
	n.CreatedAt = time.Unix(0, created)
	if updated.Valid {
		n.UpdatedAt = time.Unix(0, updated.Int64)
	}
	return n, nil
}

var (
	_ core.Store  = (*Store)(nil)
	_ core.Closer = (*Store)(nil)
)
