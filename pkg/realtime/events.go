// Package realtime is the synchronization layer: it relays store changes to
// every connected session, applies note commands sent by sessions, keeps the
// registry of live sessions, and feeds operational telemetry to the sessions
// that joined as administrators.
//
// All state here is in-process. A restart loses every session and log line.
package realtime

import (
	"encoding/json"
	"time"
)

// Inbound events (session -> server).
const (
	EventLoadNotes           = "load-notes"
	EventCreateNote          = "create-note"
	EventUpdateNote          = "update-note"
	EventDeleteNote          = "delete-note"
	EventAdminJoin           = "admin-join"
	EventAdminRequestStats   = "admin-request-stats"
	EventAdminRequestClients = "admin-request-clients"
	EventAdminRequestLogs    = "admin-request-logs"
	EventActivity            = "activity"
)

// Outbound events (server -> session).
const (
	EventNotesLoaded        = "notes-loaded"
	EventNoteCreated        = "note-created"
	EventNoteAdded          = "note-added"
	EventNoteUpdated        = "note-updated"
	EventNoteRemoved        = "note-removed"
	EventNoteDeleted        = "note-deleted"
	EventError              = "error"
	EventClientConnected    = "client-connected"
	EventClientDisconnected = "client-disconnected"
	EventClientsUpdate      = "clients-update"
	EventStatsUpdate        = "stats-update"
	EventLogsUpdate         = "logs-update"
	EventServerLog          = "server-log"
)

// Frame is the envelope of every message on the wire:
//
//	{"event": "note-added", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an event and its payload into a wire frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	f := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	return json.Marshal(f)
}

// CreateNotePayload is the body of create-note.
type CreateNotePayload struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// UpdateNotePayload is the body of update-note.
type UpdateNotePayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ErrorPayload is the body of the error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Stats is the body of stats-update.
type Stats struct {
	TotalNotes       int     `json:"totalNotes"`
	ConnectedClients int     `json:"connectedClients"`
	AdminClients     int     `json:"adminClients"`
	ServerUptime     float64 `json:"serverUptime"`
	Timestamp        int64   `json:"timestamp"`
}

// decodeID accepts either a bare JSON string or an object with an "id" field.
func decodeID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return obj.ID, nil
}
