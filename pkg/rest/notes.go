package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/notesync/pkg/core"
)

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createdResponse struct {
	Message string `json:"message"`
	core.Note
}

type ackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (a *api) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := a.service.ListNotes(r.Context())
	if err != nil {
		a.logger.Error("list notes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []core.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (a *api) getNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := a.service.GetNote(r.Context(), id)
	if err != nil {
		if core.IsNotFound(err) || core.IsValidation(err) {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}
		a.logger.Error("get note failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get note")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *api) createNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := a.service.CreateNote(r.Context(), core.NoteFields{Title: req.Title, Content: req.Content})
	if err != nil {
		if core.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "title and content are required")
			return
		}
		a.logger.Error("create note failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create note")
		return
	}

	a.hub.NoteCreated(n)
	writeJSON(w, http.StatusCreated, createdResponse{Message: "note created", Note: n})
}

// updateNote does not tell a missing note apart from other store failures:
// both answer 500.
func (a *api) updateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := a.service.UpdateNote(r.Context(), id, core.NoteFields{Title: req.Title, Content: req.Content})
	if err != nil {
		a.logger.Error("update note failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, storeMessage("failed to update note", err))
		return
	}

	a.hub.NoteUpdated(n)
	writeJSON(w, http.StatusOK, ackResponse{Message: "note updated", ID: id})
}

func (a *api) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.service.DeleteNote(r.Context(), id); err != nil {
		a.logger.Error("delete note failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, storeMessage("failed to delete note", err))
		return
	}

	a.hub.NoteDeleted(id)
	writeJSON(w, http.StatusOK, ackResponse{Message: "note deleted", ID: id})
}

func (a *api) noteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats(r.Context())
	if err != nil {
		a.logger.Error("note stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// storeMessage keeps the public reason for known domain errors only.
func storeMessage(fallback string, err error) string {
	switch {
	case core.IsNotFound(err):
		return core.ErrNotFound.Error()
	case errors.Is(err, core.ErrReadOnly):
		return core.ErrReadOnly.Error()
	}
	return fallback
}
