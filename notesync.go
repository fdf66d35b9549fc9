package notesync

import (
	"log/slog"
	"time"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/core"
)

// --- Configuration ---

// Option defines a functional option for opening a note store.
type Option = platform.Option

// Adapter names.
const (
	AdapterMemory = platform.AdapterMemory
	AdapterFS     = platform.AdapterFS
	AdapterSQLite = platform.AdapterSQLite
)

// WithAdapter selects the store ("memory", "fs" or "sqlite"). Defaults to "fs".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithStore injects a custom store.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithLogger sets the logger for the store and the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithVersioning enables or disables git commits for the fs store.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithAutoInit creates the store location when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithMustExist requires the store location to exist already.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly opens the store read-only.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the temp-dir sandbox applied under `go run`/`go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithEventBuffer sets the change broker buffer size.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithPollInterval sets the sqlite journal polling interval.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// --- Construction ---

// New opens a note store and returns the service over it.
func New(uri string, opts ...Option) (*core.Service, error) {
	return platform.New(uri, opts...)
}

// ServerConfig configures NewServer.
type ServerConfig = platform.AppConfig

// Server is the HTTP + websocket process around a service.
type Server = platform.App

// NewServer wires the realtime hub, the change relay and the HTTP facade
// around service. Call Run to serve.
func NewServer(service *core.Service, cfg ServerConfig) *Server {
	if cfg.Version == "" {
		cfg.Version = Version
	}
	return platform.NewApp(service, cfg)
}
