package fs

import (
	"sync"
	"time"
)

// indexEntry is what the watcher last observed for a note file.
type indexEntry struct {
	ModTime time.Time
	Size    int64
}

// index tracks the note files a watcher knows about. It lets the watcher tell
// an Added from a Modified change and skip events that changed nothing.
type index struct {
	mu      sync.RWMutex
	entries map[string]indexEntry
}

func newIndex() *index {
	return &index{entries: make(map[string]indexEntry)}
}

// Get returns the entry for id and whether it is known.
func (ix *index) Get(id string) (indexEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	return e, ok
}

// Set records the observed state of id.
func (ix *index) Set(id string, e indexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[id] = e
}

// Delete forgets id.
func (ix *index) Delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, id)
}

// Replace swaps the full content of the index.
func (ix *index) Replace(entries map[string]indexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = entries
}

// IDs returns every known id.
func (ix *index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of known ids.
func (ix *index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}
