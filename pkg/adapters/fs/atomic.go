package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// TempFilePrefix marks in-progress writes. The watcher and List skip it.
	TempFilePrefix = "notesync-tmp-"

	notePerm os.FileMode = 0644
)

// writeNoteFile replaces dir/<id>.md in one rename, so watchers and readers
// see either the old or the new note, never a partial file. The temp file
// carries the id to make stray leftovers traceable.
func writeNoteFile(dir, id string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, TempFilePrefix+id+"-*")
	if err != nil {
		return fmt.Errorf("note %s: create temp file: %w", id, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("note %s: write temp file: %w", id, err)
	}

	if err = os.Chmod(tmpName, notePerm); err != nil {
		return fmt.Errorf("note %s: chmod: %w", id, err)
	}
	if err = os.Rename(tmpName, filepath.Join(dir, id+noteExt)); err != nil {
		return fmt.Errorf("note %s: rename into place: %w", id, err)
	}
	return nil
}
