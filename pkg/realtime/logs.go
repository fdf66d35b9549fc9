package realtime

import (
	"sync"
	"time"
)

// Log levels used for server-log entries.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// DefaultLogCapacity is the number of entries kept by a LogRing.
const DefaultLogCapacity = 200

// LogEntry is one synthetic log line delivered to admin sessions.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}

// LogRing keeps the most recent log entries in memory.
type LogRing struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewLogRing creates a ring holding up to capacity entries.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogRing{entries: make([]LogEntry, capacity)}
}

// Add appends an entry, overwriting the oldest one when full.
func (l *LogRing) Add(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to limit entries, newest first. An empty level or "all"
// matches every entry; limit <= 0 means no limit.
func (l *LogRing) Recent(level string, limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}

	out := make([]LogEntry, 0, min(size, max(limit, 0)))
	for i := 0; i < size; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		e := l.entries[idx]
		if level != "" && level != "all" && e.Level != level {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of stored entries.
func (l *LogRing) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Clear drops every entry.
func (l *LogRing) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.next = 0
	l.full = false
}
