package realtime_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

// recorder is an Outbox that keeps every frame it receives.
type recorder struct {
	mu     sync.Mutex
	frames []realtime.Frame
	closed bool
}

func (r *recorder) Enqueue(b []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	var f realtime.Frame
	if err := json.Unmarshal(b, &f); err != nil {
		panic(err)
	}
	r.frames = append(r.frames, f)
	return true
}

func (r *recorder) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

func (r *recorder) events(name string) []realtime.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Frame
	for _, f := range r.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Event)
	}
	return out
}

// waitFor blocks until the recorder holds n frames of the event.
func (r *recorder) waitFor(t *testing.T, name string, n int) []realtime.Frame {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.events(name)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %q, got %v", n, name, r.names())
	return r.events(name)
}

type fixture struct {
	store *memory.Store
	hub   *realtime.Hub
	ctx   context.Context
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	seq := 0
	store := memory.New()
	service := core.NewService(store, core.WithServiceLogger(quietLogger()))
	hub := realtime.NewHub(service,
		realtime.WithLogger(quietLogger()),
		realtime.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("s%d", seq)
		}),
	)
	return &fixture{store: store, hub: hub, ctx: ctx}
}

// startRelay subscribes a relay to the fixture store.
func (f *fixture) startRelay(t *testing.T) *realtime.Relay {
	t.Helper()
	relay := realtime.NewRelay(f.hub)
	require.NoError(t, relay.Start(f.ctx))
	return relay
}

func (f *fixture) connect(t *testing.T) (realtime.Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := f.hub.Connect("127.0.0.1", "test-agent", rec)
	return s, rec
}

func (f *fixture) send(sessionID, event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		data = b
	}
	f.hub.Handle(f.ctx, sessionID, event, data)
}

func decode[T any](t *testing.T, f realtime.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}
