// Package client mirrors note state from a notesync server.
//
// A View is the local copy of the collection. It is patched in place from
// server events and keyed by note id, so redundant deliveries (an ack plus
// the store echo, a direct update plus the store's modified change) are
// harmless. Additions insert, updates only patch notes already present and
// never roll a note back to an older UpdatedAt, and removals are
// remove-if-present. Removed ids are remembered: note ids are never reused,
// so a late update or ack for a deleted note cannot bring it back.
package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/realtime"
)

// View is the local, id-keyed state of the note collection.
type View struct {
	mu      sync.RWMutex
	notes   map[string]core.Note
	removed map[string]struct{}
}

// NewView creates an empty View.
func NewView() *View {
	return &View{
		notes:   make(map[string]core.Note),
		removed: make(map[string]struct{}),
	}
}

// Apply patches the view with one server event. Events that do not carry
// note state are ignored.
func (v *View) Apply(event string, data json.RawMessage) error {
	switch event {
	case realtime.EventNotesLoaded:
		var notes []core.Note
		if err := json.Unmarshal(data, &notes); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		v.Replace(notes)

	case realtime.EventNoteAdded, realtime.EventNoteCreated, realtime.EventNoteUpdated:
		var n core.Note
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		if n.ID == "" {
			return fmt.Errorf("decode %s: missing id", event)
		}
		if event == realtime.EventNoteUpdated {
			v.Patch(n)
		} else {
			v.Upsert(n)
		}

	case realtime.EventNoteRemoved, realtime.EventNoteDeleted:
		id, err := removedID(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		v.Remove(id)
	}
	return nil
}

// Replace swaps the whole content of the view. Notes already removed stay
// out: a snapshot may have been taken before their deletion.
func (v *View) Replace(notes []core.Note) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes = make(map[string]core.Note, len(notes))
	for _, n := range notes {
		if _, gone := v.removed[n.ID]; gone {
			continue
		}
		v.notes[n.ID] = n
	}
}

// Upsert inserts a note or merges it into the existing entry. It reports
// whether the view changed.
func (v *View) Upsert(n core.Note) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, gone := v.removed[n.ID]; gone {
		return false
	}
	prev, ok := v.notes[n.ID]
	if !ok {
		v.notes[n.ID] = n
		return true
	}
	return v.merge(prev, n)
}

// Patch merges an update into a note already in the view. Updates for
// unknown or removed notes are dropped.
func (v *View) Patch(n core.Note) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.notes[n.ID]
	if !ok {
		return false
	}
	return v.merge(prev, n)
}

// merge applies n over prev unless n is older. Zero timestamps in a partial
// payload keep the values already known. Caller holds the lock.
func (v *View) merge(prev, n core.Note) bool {
	if !n.UpdatedAt.IsZero() && n.UpdatedAt.Before(prev.UpdatedAt) {
		return false
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = prev.CreatedAt
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = prev.UpdatedAt
	}
	v.notes[n.ID] = n
	return true
}

// Remove deletes a note if present and reports whether it was. The id is
// remembered either way.
func (v *View) Remove(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed[id] = struct{}{}
	if _, ok := v.notes[id]; !ok {
		return false
	}
	delete(v.notes, id)
	return true
}

// Get returns a note by id.
func (v *View) Get(id string) (core.Note, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n, ok := v.notes[id]
	return n, ok
}

// Len returns the number of notes in the view.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.notes)
}

// Notes returns the notes newest first.
func (v *View) Notes() []core.Note {
	v.mu.RLock()
	out := make([]core.Note, 0, len(v.notes))
	for _, n := range v.notes {
		out = append(out, n)
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// removedID accepts a bare id or an object carrying one.
func removedID(data json.RawMessage) (string, error) {
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
	if obj.ID == "" {
		return "", fmt.Errorf("missing id")
	}
	return obj.ID, nil
}
