package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/notesync/pkg/adapters/fs"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/adapters/sqlite"
	"github.com/aretw0/notesync/pkg/core"
)

// SQLiteFile is the database name used when the sqlite uri is a directory.
const SQLiteFile = "notes.db"

// OpenStore builds and initializes the store selected by opts.
func OpenStore(uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.store != nil {
		return o.store, nil
	}

	var store core.Store
	switch o.adapter {
	case AdapterMemory:
		store = memory.New()
	case AdapterFS:
		store = newFS(uri, o)
	case AdapterSQLite:
		var err error
		if store, err = newSQLite(uri, o); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}

	if err := store.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize %s store: %w", o.adapter, err)
	}
	return store, nil
}

// resolve applies the dev sandbox to a user path.
func resolve(path string, o *options) (string, bool) {
	bypass := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypass)
	resolved := ResolvePath(path, useTemp)

	if IsDevRun() {
		switch {
		case o.readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypass:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if useTemp && resolved != path {
		o.logger.Warn("store re-rooted into sandbox", "original_path", path, "resolved_path", resolved)
	}
	return resolved, useTemp
}

func newFS(path string, o *options) *fs.Repository {
	resolved, useTemp := resolve(path, o)

	systemDir := o.systemDir
	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	// Without an explicit choice, an existing .git turns versioning on; a
	// fresh directory with AutoInit starts versioned unless it already holds
	// a gitless system dir or lives in the sandbox.
	gitless := true
	if o.versioning != nil {
		gitless = !*o.versioning
	} else if hasFile(resolved, ".git") {
		gitless = false
	} else if o.autoInit && !hasFile(resolved, systemDir) && !useTemp {
		gitless = false
	}
	if gitless {
		o.logger.Debug("versioning disabled", "path", resolved)
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		AutoInit:     o.autoInit,
		MustExist:    o.mustExist,
		Gitless:      gitless,
		ReadOnly:     o.readOnly,
		Logger:       o.logger,
		SystemDir:    systemDir,
		ErrorHandler: o.errorHandler,
		AuthorName:   o.authorName,
		AuthorEmail:  o.authorEmail,
	})
}

func newSQLite(path string, o *options) (*sqlite.Store, error) {
	if path == "" {
		path = "."
	}
	if filepath.Ext(path) == "" {
		path = filepath.Join(path, SQLiteFile)
	}
	if path != ":memory:" {
		path, _ = resolve(path, o)
		if o.mustExist {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("store path does not exist: %s", path)
			}
		}
	}

	return sqlite.New(sqlite.Config{
		Path:         path,
		ReadOnly:     o.readOnly,
		PollInterval: o.pollInterval,
		Logger:       o.logger,
	}), nil
}
