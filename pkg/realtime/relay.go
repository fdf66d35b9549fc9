package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	changes "github.com/aretw0/notesync/pkg/adapters/lifecycle"
	"github.com/aretw0/notesync/pkg/core"
)

// ErrRelayStarted is returned when Start is called more than once.
var ErrRelayStarted = errors.New("relay already started")

// Relay forwards the store's change stream to every connected session:
// added -> note-added, modified -> note-updated, removed -> note-removed.
//
// It holds exactly one subscription and never retries it. Reconnecting to
// the backend is the store's job; if the stream ends, forwarding stops and
// the relay reports it through Done and the log.
type Relay struct {
	hub *Hub

	mu         sync.RWMutex
	started    bool
	running    bool
	forwarded  int64
	lastChange time.Time
	done       chan struct{}
}

// NewRelay creates a relay for hub. Nothing is subscribed until Start.
func NewRelay(hub *Hub) *Relay {
	return &Relay{hub: hub, done: make(chan struct{})}
}

// Start subscribes to the store and forwards changes in the background until
// ctx ends or the stream closes. The subscription is registered before Start
// returns.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRelayStarted
	}
	r.started = true
	r.mu.Unlock()

	batches, err := r.hub.service.Watch(ctx)
	if err != nil {
		close(r.done)
		return fmt.Errorf("relay: subscribe: %w", err)
	}

	source := changes.NewSource(batches)
	if err := source.Start(ctx); err != nil {
		close(r.done)
		return fmt.Errorf("relay: start source: %w", err)
	}

	r.setRunning(true)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(r.done)
		defer r.setRunning(false)

		for ev := range source.Events() {
			change, ok := ev.(core.Change)
			if !ok {
				continue
			}
			r.forward(change)
		}

		if ctx.Err() == nil {
			r.hub.logger.Warn("change stream closed, relay stopped")
			r.hub.Log(LevelWarning, SourceStore, "Change stream closed")
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		r.hub.logger.Error("relay failed", "error", err)
	}))

	return nil
}

// Done is closed when the relay stops forwarding.
func (r *Relay) Done() <-chan struct{} { return r.done }

func (r *Relay) forward(c core.Change) {
	switch c.Type {
	case core.ChangeAdded:
		r.hub.registry.Broadcast(EventNoteAdded, c.Note)
	case core.ChangeModified:
		r.hub.registry.Broadcast(EventNoteUpdated, c.Note)
	case core.ChangeRemoved:
		r.hub.registry.Broadcast(EventNoteRemoved, c.ID)
	default:
		r.hub.logger.Debug("ignoring change", "type", c.Type, "id", c.ID)
		return
	}

	r.mu.Lock()
	r.forwarded++
	r.lastChange = r.hub.now()
	r.mu.Unlock()

	r.hub.logger.Debug("change relayed", "type", c.Type, "id", c.ID)
	r.hub.Log(LevelInfo, SourceStore, fmt.Sprintf("Note %s: %s", c.Type, c.ID))
}

func (r *Relay) setRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}
