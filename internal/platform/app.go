package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
	"github.com/aretw0/notesync/pkg/rest"
)

// DefaultShutdownTimeout bounds the graceful HTTP shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// AppConfig configures the server process.
type AppConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	Transport       realtime.TransportConfig
	LogCapacity     int
	Version         string
	Logger          *slog.Logger
}

// App wires a note service to the realtime hub, the change relay and the
// HTTP listener serving REST and websocket traffic.
type App struct {
	config  AppConfig
	service *core.Service
	hub     *realtime.Hub
	relay   *realtime.Relay
	ws      *realtime.WebsocketHandler
	handler http.Handler
	logger  *slog.Logger

	ready chan struct{}
	mu    sync.Mutex
	addr  net.Addr
}

// NewApp builds the process graph around service.
func NewApp(service *core.Service, cfg AppConfig) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	hubOpts := []realtime.Option{realtime.WithLogger(cfg.Logger)}
	if cfg.LogCapacity > 0 {
		hubOpts = append(hubOpts, realtime.WithLogCapacity(cfg.LogCapacity))
	}
	hub := realtime.NewHub(service, hubOpts...)
	relay := realtime.NewRelay(hub)

	components := []introspection.Component{service}
	if c, ok := service.Store().(introspection.Component); ok {
		components = append(components, c)
	}
	components = append(components, hub, relay)

	ws := realtime.NewWebsocketHandler(hub, cfg.Transport)
	a := &App{
		config:  cfg,
		service: service,
		hub:     hub,
		relay:   relay,
		ws:      ws,
		logger:  cfg.Logger,
		ready:   make(chan struct{}),
	}
	a.handler = rest.NewRouter(rest.Config{
		Service:    service,
		Hub:        hub,
		Websocket:      ws,
		Components:     components,
		Logger:         cfg.Logger,
		Version:        cfg.Version,
		AllowedOrigins: cfg.Transport.AllowedOrigins,
	})
	return a
}

// Hub returns the realtime hub.
func (a *App) Hub() *realtime.Hub { return a.hub }

// Handler returns the HTTP handler (REST + websocket).
func (a *App) Handler() http.Handler { return a.handler }

// Ready is closed once the listener accepts connections.
func (a *App) Ready() <-chan struct{} { return a.ready }

// Addr returns the bound address; nil before Ready.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run starts the relay and serves HTTP until ctx is cancelled, then shuts the
// listener down gracefully and closes the store.
func (a *App) Run(ctx context.Context) error {
	if err := a.relay.Start(ctx); err != nil {
		if !errors.Is(err, core.ErrNotWatchable) {
			return fmt.Errorf("start relay: %w", err)
		}
		a.logger.Warn("store is not watchable, external changes will not be relayed")
	}

	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening", "addr", ln.Addr().String())
		a.hub.Log(realtime.LevelInfo, realtime.SourceServer, fmt.Sprintf("Server listening on %s", ln.Addr()))
		close(a.ready)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.config.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Sessions must leave the registry before the store closes.
		if werr := a.ws.Shutdown(shutdownCtx); werr != nil {
			a.logger.Warn("websocket sessions did not close in time", "error", werr)
		}
		return err
	})

	err = g.Wait()
	if closer, ok := a.service.Store().(core.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			a.logger.Error("close store", "error", cerr)
		}
	}
	return err
}
