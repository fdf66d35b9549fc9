package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notesync/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
)

// options holds the internal configuration for opening a store.
type options struct {
	store        core.Store
	logger       *slog.Logger
	adapter      string
	versioning   *bool
	autoInit     bool
	mustExist    bool
	readOnly     bool
	forceTemp    bool
	devSafety    bool
	systemDir    string
	eventBuffer  int
	pollInterval time.Duration
	errorHandler func(error)
	authorName   string
	authorEmail  string
}

// Option defines a functional option for configuring the platform.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		autoInit:  true,
		devSafety: true,
	}
}

// WithAdapter selects the store by name ("memory", "fs" or "sqlite").
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithStore injects a ready store; the adapter selection is skipped.
func WithStore(s core.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLogger sets the logger handed to the store and the service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithVersioning enables or disables git commits for the fs store.
// When not set, an existing .git directory turns versioning on.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.versioning = &enabled
	}
}

// WithAutoInit creates the store directory (and git repository) when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithMustExist fails when the store location does not exist yet.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithReadOnly opens the store read-only. Writes return core.ErrReadOnly and
// the dev sandbox is bypassed, since nothing can be damaged.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithForceTemp forces the store into the temporary sandbox.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox applied under `go run` and `go test`.
// By default (true) the store is re-rooted into a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithSystemDir overrides the hidden directory of the fs store.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithEventBuffer sets the size of the service's change broker buffer.
// Zero means default.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithPollInterval sets how often the sqlite store reads its change journal.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithWatcherErrorHandler receives runtime watcher failures of the fs store
// (e.g. permission denied) which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithAuthor sets the identity used for commits of the versioned fs store.
func WithAuthor(name, email string) Option {
	return func(o *options) {
		o.authorName = name
		o.authorEmail = email
	}
}
