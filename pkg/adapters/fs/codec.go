package fs

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notesync/pkg/core"
)

// frontMatter is the YAML header of a note file.
type frontMatter struct {
	Title     string `yaml:"title"`
	CreatedAt string `yaml:"created_at,omitempty"`
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

var delimiter = []byte("---\n")

// encodeNote renders a note as Markdown with YAML front matter.
// The ID is not written: it is the file name.
func encodeNote(n core.Note) ([]byte, error) {
	fm := frontMatter{Title: n.Title}
	if !n.CreatedAt.IsZero() {
		fm.CreatedAt = n.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !n.UpdatedAt.IsZero() {
		fm.UpdatedAt = n.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	var buf bytes.Buffer
	buf.Write(delimiter)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(fm); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.Write(delimiter)
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}

// decodeNote parses a note file. Files without front matter are accepted:
// the whole file becomes the content and the title falls back to the ID.
func decodeNote(id string, data []byte) (core.Note, error) {
	n := core.Note{ID: id}

	if !bytes.HasPrefix(data, delimiter) {
		n.Title = id
		n.Content = string(data)
		return n, nil
	}

	rest := data[len(delimiter):]
	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, delimiter):
		body = rest[len(delimiter):]
	default:
		end := bytes.Index(rest, []byte("\n---\n"))
		if end < 0 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return core.Note{}, errors.New("front matter started but no closing delimiter found")
			}
			end = len(rest) - len("\n---")
			header = rest[:end+1]
		} else {
			header = rest[:end+1]
			body = rest[end+len("\n---\n"):]
		}
	}

	var fm frontMatter
	if len(header) > 0 {
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return core.Note{}, fmt.Errorf("failed to parse front matter: %w", err)
		}
	}

	n.Title = fm.Title
	n.Content = string(body)
	if fm.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fm.CreatedAt)
		if err != nil {
			return core.Note{}, fmt.Errorf("invalid created_at: %w", err)
		}
		n.CreatedAt = t
	}
	if fm.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, fm.UpdatedAt)
		if err != nil {
			return core.Note{}, fmt.Errorf("invalid updated_at: %w", err)
		}
		n.UpdatedAt = t
	}

	return n, nil
}
