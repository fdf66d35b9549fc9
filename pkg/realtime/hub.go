package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notesync/pkg/core"
)

// Log sources attached to server-log entries.
const (
	SourceServer    = "server"
	SourceWebsocket = "websocket"
	SourceAPI       = "api"
	SourceStore     = "store"
)

// Hub is the process-scoped owner of the realtime state. It is passed to
// every connection handler; nothing in this package is global.
type Hub struct {
	service  *core.Service
	registry *Registry
	logs     *LogRing
	logger   *slog.Logger
	now      func() time.Time
	started  time.Time
	newID    func() string
}

// Option configures a Hub.
type Option func(*hubOptions)

type hubOptions struct {
	logger      *slog.Logger
	now         func() time.Time
	logCapacity int
	newID       func() string
}

// WithLogger sets the logger used by the hub and its registry.
func WithLogger(logger *slog.Logger) Option {
	return func(o *hubOptions) { o.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *hubOptions) { o.now = now }
}

// WithLogCapacity sets how many server-log entries are retained.
func WithLogCapacity(n int) Option {
	return func(o *hubOptions) { o.logCapacity = n }
}

// WithIDGenerator overrides session id allocation (UUIDv4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(o *hubOptions) { o.newID = fn }
}

// NewHub creates a Hub over a note service.
func NewHub(service *core.Service, opts ...Option) *Hub {
	o := hubOptions{
		logger:      slog.Default(),
		now:         time.Now,
		logCapacity: DefaultLogCapacity,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Hub{
		service:  service,
		registry: NewRegistry(o.logger, o.now),
		logs:     NewLogRing(o.logCapacity),
		logger:   o.logger,
		now:      o.now,
		started:  o.now(),
		newID:    o.newID,
	}
}

// Service returns the note service the hub writes through.
func (h *Hub) Service() *core.Service { return h.service }

// Registry returns the session registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Logs returns the server-log ring.
func (h *Hub) Logs() *LogRing { return h.logs }

// Uptime returns the time since the hub was created.
func (h *Hub) Uptime() time.Duration { return h.now().Sub(h.started) }

// Connect allocates a session for a new connection.
func (h *Hub) Connect(address, userAgent string, out Outbox) Session {
	s := h.registry.Connect(h.newID(), address, userAgent, out)
	h.logger.Info("client connected", "session", s.ID, "ip", address)
	return s
}

// Disconnect drops a session and tells the remaining admins about it.
func (h *Hub) Disconnect(id string) {
	if _, ok := h.registry.Disconnect(id); !ok {
		return
	}
	h.logger.Info("client disconnected", "session", id)
	h.Log(LevelInfo, SourceWebsocket, fmt.Sprintf("Client disconnected: %s", id))
}

// Log records a server-log entry and pushes it to the admin set.
// Entries are best-effort observability: not persisted, lost on restart.
func (h *Hub) Log(level, source, message string) {
	e := LogEntry{
		Timestamp: h.now(),
		Level:     level,
		Message:   message,
		Source:    source,
	}
	h.logs.Add(e)
	h.registry.SendAdmins(EventServerLog, e)
}

// Stats builds the stats-update snapshot.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	total, err := h.service.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := h.now()
	return Stats{
		TotalNotes:       total,
		ConnectedClients: h.registry.Count(),
		AdminClients:     h.registry.AdminCount(),
		ServerUptime:     now.Sub(h.started).Seconds(),
		Timestamp:        now.UnixMilli(),
	}, nil
}

// NoteCreated propagates a note created outside the realtime path (REST).
// There is no originating session, so the acknowledgement goes to everyone.
func (h *Hub) NoteCreated(n core.Note) {
	h.registry.Broadcast(EventNoteCreated, n)
	h.Log(LevelInfo, SourceAPI, fmt.Sprintf("Note created: %s", n.Title))
}

// NoteUpdated broadcasts an update to every session.
func (h *Hub) NoteUpdated(n core.Note) {
	h.registry.Broadcast(EventNoteUpdated, n)
	h.Log(LevelInfo, SourceAPI, fmt.Sprintf("Note updated: %s", n.Title))
}

// NoteDeleted broadcasts a deletion to every session.
func (h *Hub) NoteDeleted(id string) {
	h.registry.Broadcast(EventNoteDeleted, id)
	h.Log(LevelInfo, SourceAPI, fmt.Sprintf("Note deleted: %s", id))
}
