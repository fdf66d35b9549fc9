package core

import (
	"math"
	"time"
)

// NoteStats summarises note creation activity.
type NoteStats struct {
	TotalNotes         int     `json:"totalNotes"`
	NotesToday         int     `json:"notesToday"`
	NotesThisWeek      int     `json:"notesThisWeek"`
	AverageNotesPerDay float64 `json:"averageNotesPerDay"`
}

// ComputeStats derives NoteStats from a snapshot of the collection.
// "Today" starts at local midnight of now; the week window starts seven days
// before that midnight. The average divides by the number of days elapsed
// since the oldest note, with a floor of one day.
func ComputeStats(notes []Note, now time.Time) NoteStats {
	stats := NoteStats{TotalNotes: len(notes)}
	if len(notes) == 0 {
		return stats
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	oldest := now
	for _, n := range notes {
		created := n.CreatedAt
		if created.IsZero() {
			created = now
		}
		if !created.Before(today) {
			stats.NotesToday++
		}
		if !created.Before(weekAgo) {
			stats.NotesThisWeek++
		}
		if created.Before(oldest) {
			oldest = created
		}
	}

	days := math.Ceil(now.Sub(oldest).Hours() / 24)
	if days < 1 {
		days = 1
	}
	stats.AverageNotesPerDay = math.Round(float64(len(notes))/days*100) / 100

	return stats
}

// CreatedSince returns the notes created at or after since.
func CreatedSince(notes []Note, since time.Time) []Note {
	var out []Note
	for _, n := range notes {
		if !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	return out
}
