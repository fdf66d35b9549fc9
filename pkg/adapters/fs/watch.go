package fs

import (
	"context"
	"os"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/notesync/pkg/core"
)

// WatcherBackoff is the restart policy applied to the fsnotify worker.
// The store owns retries for its own subscription; consumers never retry.
var WatcherBackoff = supervisor.Backoff{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	Multiplier:      2,
	ResetDuration:   time.Minute,
	MaxRestarts:     10,
	MaxDuration:     5 * time.Minute,
}

// Watch implements core.Watchable.
// Each call runs its own supervised fsnotify worker; the index of known notes
// is seeded from disk before the call returns, so only later changes are
// reported.
func (r *Repository) Watch(ctx context.Context) (<-chan core.ChangeBatch, error) {
	ix := newIndex()
	if err := r.seedIndex(ix); err != nil {
		return nil, err
	}

	events := make(chan core.ChangeBatch)
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, ix, events), nil
		},
		Backoff:       WatcherBackoff,
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("fs-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.watchers++
	r.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := sup.Stop(stopCtx)

		r.mu.Lock()
		r.watchers--
		r.mu.Unlock()

		close(events)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("fs watch shutdown failed", "error", err)
	}))

	return events, nil
}

func (r *Repository) seedIndex(ix *index) error {
	entries, err := os.ReadDir(r.Path)
	if err != nil {
		return err
	}
	seed := make(map[string]indexEntry, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := r.idFromName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		seed[id] = indexEntry{ModTime: info.ModTime(), Size: info.Size()}
	}
	ix.Replace(seed)
	return nil
}
