package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notesync/pkg/core"
)

// watchWorker turns fsnotify events on the store directory into change batches.
// The index is shared between successive workers of one subscription so a
// restarted worker can reconcile what happened while it was down.
type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	index     *index
	events    chan<- core.ChangeBatch
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository, ix *index, events chan<- core.ChangeBatch) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		index:      ix,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.repo.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.repo.Path, err)
	}

	w.watcher = watcher
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.debouncer = newDebouncer(w.repo.config.Debounce, func(ids []string) {
		w.emit(runCtx, w.resolve(ids))
	})

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// resolve compares each id against disk and the index.
// Existing file: Added if unknown, Modified if its mtime/size moved, nothing otherwise.
// Missing file: Removed if known, nothing otherwise.
func (w *watchWorker) resolve(ids []string) core.ChangeBatch {
	var batch core.ChangeBatch
	for _, id := range ids {
		info, err := os.Stat(filepath.Join(w.repo.Path, w.repo.filename(id)))
		if errors.Is(err, os.ErrNotExist) {
			if _, known := w.index.Get(id); known {
				w.index.Delete(id)
				batch = append(batch, core.Removed(id))
			}
			continue
		}
		if err != nil {
			w.reportError(fmt.Errorf("failed to stat %s: %w", id, err))
			continue
		}

		entry := indexEntry{ModTime: info.ModTime(), Size: info.Size()}
		prev, known := w.index.Get(id)
		if known && prev == entry {
			continue
		}

		n, err := w.repo.read(id)
		if err != nil {
			// Half-written or foreign file; the next event retries.
			w.repo.config.Logger.Debug("skipping unreadable note", "id", id, "error", err)
			continue
		}
		w.index.Set(id, entry)
		if known {
			batch = append(batch, core.Modified(n))
		} else {
			batch = append(batch, core.Added(n))
		}
	}
	return batch
}

// reconcile diffs the index against the directory. It catches changes that
// happened while no worker was running (e.g. between supervisor restarts).
func (w *watchWorker) reconcile() core.ChangeBatch {
	seen := make(map[string]struct{})
	var ids []string

	entries, err := os.ReadDir(w.repo.Path)
	if err != nil {
		w.reportError(fmt.Errorf("reconcile failed: %w", err))
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := w.repo.idFromName(entry.Name()); ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range w.index.IDs() {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}

	w.repo.recordReconcile()
	return w.resolve(ids)
}

// emit delivers a batch, protecting against channel closure during shutdown.
func (w *watchWorker) emit(ctx context.Context, batch core.ChangeBatch) {
	if len(batch) == 0 {
		return
	}
	defer func() {
		// Channel closed while the subscription was tearing down.
		_ = recover()
	}()
	select {
	case w.events <- batch:
	case <-ctx.Done():
	}
}

func (w *watchWorker) reportError(err error) {
	w.repo.config.Logger.Error("fs watcher error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.repo.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			// Full stack only when debugging.
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	w.emit(ctx, w.reconcile())

	err = w.mainEventLoop(ctx)

	// Stop accepting ids and wait for in-flight flushes before the
	// subscription may close the events channel.
	w.debouncer.stopAndWait(5 * time.Second)

	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.reportError(wErr)
		}
	}
}

// processFilesystemEvent filters an fsnotify event and queues its note id.
func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("fs event", "name", event.Name, "op", event.Op.String())

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.repo.Path) {
		return false
	}
	id, ok := w.repo.idFromName(filepath.Base(event.Name))
	if !ok {
		return false
	}

	w.debouncer.add(id)
	return true
}
