package realtime

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Session is the metadata tracked for one live connection.
type Session struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	Address      string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	IsAdmin      bool      `json:"isAdmin"`
}

// Outbox receives encoded frames for one session.
// Enqueue must not block; it reports false when the frame was dropped
// (closed or saturated connection).
type Outbox interface {
	Enqueue(frame []byte) bool
}

type member struct {
	session Session
	out     Outbox
}

// Registry tracks every connected session and the subset that joined as
// administrators. Its size always equals the number of open connections:
// sessions are added on connect and removed unconditionally on disconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*member
	admins   map[string]struct{}
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger, now func() time.Time) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*member),
		admins:   make(map[string]struct{}),
		now:      now,
		logger:   logger,
	}
}

// Connect registers a session and announces it to the current admins.
func (r *Registry) Connect(id, address, userAgent string, out Outbox) Session {
	now := r.now()
	s := Session{
		ID:           id,
		ConnectedAt:  now,
		LastActivity: now,
		Address:      address,
		UserAgent:    userAgent,
	}

	r.mu.Lock()
	r.sessions[id] = &member{session: s, out: out}
	r.mu.Unlock()

	r.SendAdmins(EventClientConnected, s)
	return s
}

// Disconnect removes a session. Admin membership is revoked first, then the
// remaining admins receive client-disconnected with the departing id.
// It reports whether the session was known.
func (r *Registry) Disconnect(id string) (Session, bool) {
	r.mu.Lock()
	delete(r.admins, id)
	m, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return Session{}, false
	}

	r.SendAdmins(EventClientDisconnected, id)
	return m.session, true
}

// JoinAdmin adds a session to the admin set. Joining twice is a no-op.
func (r *Registry) JoinAdmin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[id]
	if !ok {
		return false
	}
	m.session.IsAdmin = true
	r.admins[id] = struct{}{}
	return true
}

// IsAdmin reports whether id is in the admin set.
func (r *Registry) IsAdmin(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[id]
	return ok
}

// Touch refreshes the last activity of a session. Nothing is broadcast.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[id]
	if !ok {
		return false
	}
	m.session.LastActivity = r.now()
	return true
}

// Get returns a copy of a session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return m.session, true
}

// Sessions returns a snapshot of every session, oldest connection first.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, m := range r.sessions {
		out = append(out, m.session)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AdminCount returns the number of admin sessions.
func (r *Registry) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.admins)
}

// Send delivers an event to one session. A missing session or a dropped
// frame is not an error: it reports false and nothing else happens.
func (r *Registry) Send(id, event string, data any) bool {
	frame, ok := r.encode(event, data)
	if !ok {
		return false
	}

	r.mu.RLock()
	m, found := r.sessions[id]
	r.mu.RUnlock()
	if !found {
		return false
	}
	return m.out.Enqueue(frame)
}

// Broadcast delivers an event to every session and returns how many
// accepted it.
func (r *Registry) Broadcast(event string, data any) int {
	frame, ok := r.encode(event, data)
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, m := range r.sessions {
		if m.out.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// SendAdmins delivers an event to the admin set only.
func (r *Registry) SendAdmins(event string, data any) int {
	r.mu.RLock()
	if len(r.admins) == 0 {
		r.mu.RUnlock()
		return 0
	}
	r.mu.RUnlock()

	frame, ok := r.encode(event, data)
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id := range r.admins {
		if m, ok := r.sessions[id]; ok && m.out.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) encode(event string, data any) ([]byte, bool) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		r.logger.Error("failed to encode frame", "event", event, "error", err)
		return nil, false
	}
	return frame, true
}
