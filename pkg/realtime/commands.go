package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/notesync/pkg/core"
)

var (
	// ErrUnknownEvent is reported to a session that sends an unsupported event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload is reported when an event body cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Handle dispatches one inbound event from a session. Failures are reported
// to that session alone as an error event; other sessions are never affected
// and nothing is broadcast for a failed command.
func (h *Hub) Handle(ctx context.Context, sessionID, event string, data json.RawMessage) {
	var err error
	switch event {
	case EventLoadNotes:
		err = h.loadNotes(ctx, sessionID)
	case EventCreateNote:
		err = h.createNote(ctx, sessionID, data)
	case EventUpdateNote:
		err = h.updateNote(ctx, sessionID, data)
	case EventDeleteNote:
		err = h.deleteNote(ctx, sessionID, data)
	case EventAdminJoin:
		err = h.joinAdmin(ctx, sessionID)
	case EventAdminRequestStats:
		err = h.sendStats(ctx, sessionID)
	case EventAdminRequestClients:
		h.sendClients(sessionID)
	case EventAdminRequestLogs:
		h.sendLogs(sessionID)
	case EventActivity:
		h.registry.Touch(sessionID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	if err != nil {
		h.fail(sessionID, event, err)
	}
}

func (h *Hub) loadNotes(ctx context.Context, sessionID string) error {
	notes, err := h.service.ListNotes(ctx)
	if err != nil {
		return err
	}
	if notes == nil {
		notes = []core.Note{}
	}
	h.registry.Send(sessionID, EventNotesLoaded, notes)
	return nil
}

// createNote acknowledges with note-created to the originator only.
// Every session, the originator included, learns about the note through the
// relay's note-added.
func (h *Hub) createNote(ctx context.Context, sessionID string, data json.RawMessage) error {
	var p CreateNotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	n, err := h.service.CreateNote(ctx, core.NoteFields{
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return err
	}

	h.registry.Send(sessionID, EventNoteCreated, n)
	h.Log(LevelInfo, SourceWebsocket, fmt.Sprintf("Note created: %s", n.Title))
	return nil
}

// updateNote broadcasts note-updated to everyone directly. The store's own
// modified change arrives through the relay as well; views merge by id.
func (h *Hub) updateNote(ctx context.Context, sessionID string, data json.RawMessage) error {
	var p UpdateNotePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	n, err := h.service.UpdateNote(ctx, p.ID, core.NoteFields{Title: p.Title, Content: p.Content})
	if err != nil {
		return err
	}

	h.registry.Broadcast(EventNoteUpdated, n)
	h.Log(LevelInfo, SourceWebsocket, fmt.Sprintf("Note updated: %s", n.Title))
	return nil
}

func (h *Hub) deleteNote(ctx context.Context, sessionID string, data json.RawMessage) error {
	id, err := decodeID(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := h.service.DeleteNote(ctx, id); err != nil {
		return err
	}

	h.registry.Broadcast(EventNoteDeleted, id)
	h.Log(LevelInfo, SourceWebsocket, fmt.Sprintf("Note deleted: %s", id))
	return nil
}

func (h *Hub) fail(sessionID, event string, err error) {
	msg := errorMessage(event, err)
	switch {
	case core.IsValidation(err), core.IsNotFound(err), errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrInvalidPayload):
		h.logger.Debug("command rejected", "session", sessionID, "event", event, "error", err)
	default:
		h.logger.Error("command failed", "session", sessionID, "event", event, "error", err)
	}
	h.registry.Send(sessionID, EventError, ErrorPayload{Message: msg})
}

// errorMessage maps an error to the text shown to the originating session.
// Store failures are reported generically; their detail stays in the log.
func errorMessage(event string, err error) string {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case core.IsNotFound(err):
		return core.ErrNotFound.Error()
	case errors.Is(err, core.ErrReadOnly):
		return core.ErrReadOnly.Error()
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrInvalidPayload):
		return err.Error()
	}

	switch event {
	case EventLoadNotes:
		return "failed to load notes"
	case EventCreateNote:
		return "failed to create note"
	case EventUpdateNote:
		return "failed to update note"
	case EventDeleteNote:
		return "failed to delete note"
	case EventAdminJoin, EventAdminRequestStats:
		return "failed to compute stats"
	}
	return "request failed"
}
