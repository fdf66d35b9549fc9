package platform_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/client"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

func startApp(t *testing.T) (*platform.App, context.CancelFunc, <-chan error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := platform.New("", platform.WithAdapter(platform.AdapterMemory), platform.WithLogger(logger))
	require.NoError(t, err)

	app := platform.NewApp(svc, platform.AppConfig{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
		Version:         "test",
		Logger:          logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- app.Run(ctx) }()

	select {
	case <-app.Ready():
	case err := <-errc:
		cancel()
		t.Fatalf("app exited early: %v", err)
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatal("app did not become ready")
	}
	return app, cancel, errc
}

func TestApp_ServesRESTAndWebsocket(t *testing.T) {
	app, cancel, errc := startApp(t)
	defer cancel()

	base := "http://" + app.Addr().String()
	c, err := client.Dial(context.Background(), "ws://"+app.Addr().String()+"/ws", client.Options{UserAgent: "app-test"})
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		return app.Hub().Registry().Count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]string{"title": "Groceries", "content": "Milk,eggs"})
	resp, err := http.Post(base+"/api/notes", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// REST writes reach the session through the direct ack and the relay.
	require.Eventually(t, func() bool {
		return c.View().Len() == 1
	}, 3*time.Second, 10*time.Millisecond)

	seen := map[string]bool{}
	timeout := time.After(3 * time.Second)
	for !(seen[realtime.EventNoteCreated] && seen[realtime.EventNoteAdded]) {
		select {
		case ev := <-c.Events():
			seen[ev.Name] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}

	resp, err = http.Get(base + "/api/admin/system")
	require.NoError(t, err)
	var system struct {
		Components map[string]json.RawMessage `json:"components"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&system))
	resp.Body.Close()
	for _, name := range []string{"service", "memory-store", "realtime-hub", "change-relay"} {
		assert.Contains(t, system.Components, name)
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestApp_ListenFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := core.NewService(memory.New())
	app := platform.NewApp(svc, platform.AppConfig{Addr: "256.0.0.1:bad"})
	assert.ErrorContains(t, app.Run(ctx), "listen")
}

func TestApp_ShutdownClosesSessions(t *testing.T) {
	app, cancel, errc := startApp(t)
	defer cancel()

	c, err := client.Dial(context.Background(), "ws://"+app.Addr().String()+"/ws", client.Options{UserAgent: "app-test"})
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		return app.Hub().Registry().Count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}

	assert.Zero(t, app.Hub().Registry().Count(), "sessions leave before Run returns")
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client connection still open after shutdown")
	}
}
