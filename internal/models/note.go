// Package models defines the domain types shared across ansuz packages.
package models

import "time"

// Note is a Markdown file in the vault together with its derived graph data.
type Note struct {
	Path        string         `json:"path"`
	DisplayPath string         `json:"display_path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []string       `json:"links"`
	Backlinks   []string       `json:"backlinks"`
	Embedded    bool           `json:"embedded"`
	ModifiedAt  time.Time      `json:"modified_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Candidate pairs a note path with its stored embedding vector.
type Candidate struct {
	Path   string    `json:"path"`
	Vector []float32 `json:"-"`
}
