package realtime

import (
	"time"

	"github.com/aretw0/introspection"
)

// HubState exposes internal state for observability.
type HubState struct {
	Sessions   int           `json:"sessions"`
	Admins     int           `json:"admins"`
	LogEntries int           `json:"log_entries"`
	Uptime     time.Duration `json:"uptime"`
}

// State implements introspection.Introspectable.
func (h *Hub) State() any {
	return HubState{
		Sessions:   h.registry.Count(),
		Admins:     h.registry.AdminCount(),
		LogEntries: h.logs.Len(),
		Uptime:     h.Uptime(),
	}
}

// ComponentType implements introspection.Component.
func (h *Hub) ComponentType() string { return "realtime-hub" }

// RelayState exposes internal state for observability.
type RelayState struct {
	Running    bool       `json:"running"`
	Forwarded  int64      `json:"forwarded"`
	LastChange *time.Time `json:"last_change,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Relay) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := RelayState{Running: r.running, Forwarded: r.forwarded}
	if !r.lastChange.IsZero() {
		last := r.lastChange
		s.LastChange = &last
	}
	return s
}

// ComponentType implements introspection.Component.
func (r *Relay) ComponentType() string { return "change-relay" }

var (
	_ introspection.Introspectable = (*Hub)(nil)
	_ introspection.Component      = (*Hub)(nil)
	_ introspection.Introspectable = (*Relay)(nil)
	_ introspection.Component      = (*Relay)(nil)
)
