package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
)

type journalRow struct {
	seq  int64
	kind core.ChangeType
	id   string
}

// Watch implements core.Watchable.
// Only changes journaled after the call are reported. Each poll that finds
// new journal rows yields one batch, in journal order. A poll error is logged
// and the next tick retries from the same cursor.
func (s *Store) Watch(ctx context.Context) (<-chan core.ChangeBatch, error) {
	var cursor int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&cursor); err != nil {
		return nil, fmt.Errorf("sqlite: watch cursor: %w", err)
	}

	s.mu.Lock()
	s.watchers++
	s.lastSeq = max(s.lastSeq, cursor)
	s.mu.Unlock()

	out := make(chan core.ChangeBatch)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.watchers--
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			batch, next, err := s.poll(ctx, cursor)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.config.Logger.Warn("sqlite watch poll failed", "error", err)
				continue
			}
			cursor = next
			s.recordSeq(next)

			if len(batch) == 0 {
				continue
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.config.Logger.Error("sqlite watch failed", "error", err)
	}))

	return out, nil
}

// poll reads journal rows after cursor and resolves them into a batch.
// Added and Modified carry the current row; a note deleted since is skipped,
// its Removed entry follows later in the journal.
func (s *Store) poll(ctx context.Context, cursor int64) (core.ChangeBatch, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, note_id FROM changes WHERE seq > ? ORDER BY seq`, cursor)
	if err != nil {
		return nil, cursor, err
	}

	var entries []journalRow
	for rows.Next() {
		var (
			e    journalRow
			kind string
		)
		if err := rows.Scan(&e.seq, &kind, &e.id); err != nil {
			rows.Close()
			return nil, cursor, err
		}
		e.kind = core.ChangeType(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, cursor, err
	}
	rows.Close()

	var batch core.ChangeBatch
	next := cursor
	for _, e := range entries {
		next = e.seq
		switch e.kind {
		case core.ChangeRemoved:
			batch = append(batch, core.Removed(e.id))
		case core.ChangeAdded, core.ChangeModified:
			n, err := getNote(ctx, s.db, e.id)
			if core.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, cursor, err
			}
			if e.kind == core.ChangeAdded {
				batch = append(batch, core.Added(n))
			} else {
				batch = append(batch, core.Modified(n))
			}
		default:
			s.config.Logger.Debug("unknown journal kind", "kind", e.kind, "seq", e.seq)
		}
	}
	return batch, next, nil
}

func (s *Store) recordSeq(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Path         string        `json:"path"`
	ReadOnly     bool          `json:"read_only"`
	PollInterval time.Duration `json:"poll_interval"`
	Watchers     int           `json:"watchers"`
	LastSeq      int64         `json:"last_seq"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreState{
		Path:         s.config.Path,
		ReadOnly:     s.config.ReadOnly,
		PollInterval: s.config.PollInterval,
		Watchers:     s.watchers,
		LastSeq:      s.lastSeq,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string { return "sqlite-store" }

var (
	_ core.Watchable               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
