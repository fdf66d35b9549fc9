// Package core holds the note domain: the Note entity, the change events a
// store emits, and the Store contract every adapter implements.
package core

import "time"

// Note is the central entity of the domain.
// Its ID is assigned by the store at creation and never changes afterwards.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// NoteFields carries the mutable part of a note for create and update.
// A zero CreatedAt on create means "now".
type NoteFields struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ChangeType represents the kind of change observed on the collection.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is a single entry of a change batch.
// Note is populated for Added and Modified; Removed only carries ID.
type Change struct {
	Type ChangeType
	ID   string
	Note Note
}

// String implements fmt.Stringer.
func (c Change) String() string {
	return string(c.Type) + ":" + c.ID
}

// ChangeBatch is a group of changes delivered together, in store order.
type ChangeBatch []Change

// Added builds an Added change for n.
func Added(n Note) Change { return Change{Type: ChangeAdded, ID: n.ID, Note: n} }

// Modified builds a Modified change for n.
func Modified(n Note) Change { return Change{Type: ChangeModified, ID: n.ID, Note: n} }

// Removed builds a Removed change for id.
func Removed(id string) Change { return Change{Type: ChangeRemoved, ID: id} }
