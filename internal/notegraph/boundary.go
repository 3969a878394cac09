package notegraph

import (
	"context"
	"errors"
	"os"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// OpenOrCreate resolves query (path, display path or marker) to a note,
// creating it when missing, and returns its current state.
func (m *Manager) OpenOrCreate(ctx context.Context, query string) (*models.Note, bool, error) {
	p, err := parser.ResolveQuery(query)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	created, err := m.ensureExists(ctx, p)
	m.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	n, err := m.Get(ctx, p)
	return n, created, err
}

// CreateLink links from to the note designated by query and returns the
// target path.
func (m *Manager) CreateLink(ctx context.Context, from, query string) (string, error) {
	target, err := parser.ResolveQuery(query)
	if err != nil {
		return "", err
	}
	if err := m.AddLink(ctx, from, target); err != nil {
		return "", err
	}
	return target, nil
}

// Follow resolves a marker such as "[[notes/alpha|Alpha]]" (or bare link text)
// to a note path, creating the note when it does not exist.
func (m *Manager) Follow(ctx context.Context, marker string) (string, error) {
	p, err := parser.ResolveQuery(marker)
	if err != nil {
		return "", err
	}
	if _, err := m.EnsureExists(ctx, p); err != nil {
		return "", err
	}
	return p, nil
}

// Get returns the parsed note with its forward links and backlinks.
func (m *Manager) Get(ctx context.Context, path string) (*models.Note, error) {
	p, err := parser.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	data, err := m.fs.Read(p)
	if err != nil {
		return nil, m.storageErr("notegraph: get", p, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, apperr.E(apperr.KindInvalid, "notegraph: parse", p, err)
	}

	sum := checksum.Sum(data)
	n := &models.Note{
		Path:        p,
		DisplayPath: parser.DisplayPath(p),
		Title:       res.Title,
		Content:     string(data),
		Checksum:    sum,
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(toPaths(res.Links)),
		Backlinks:   nonNilSlice(toPaths(res.Backlinks)),
	}
	if n.Title == "" {
		n.Title = parser.Title(p)
	}
	if meta, err := m.fs.Stat(p); err == nil {
		n.ModifiedAt = meta.ModifiedAt
	}
	row, err := m.store.GetNote(ctx, p)
	switch {
	case err == nil:
		n.Embedded = row.Embedded && row.EmbeddingChecksum == sum
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}
	return n, nil
}

// List returns metadata for every note in the vault.
func (m *Manager) List(_ context.Context) ([]models.NoteMetadata, error) {
	items, err := m.fs.List("")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.NoteMetadata{}, nil
		}
		return nil, apperr.E(apperr.KindStorage, "notegraph: list", "", err)
	}
	return nonNilSlice(items), nil
}

// Backlinks returns the notes whose body links to path.
func (m *Manager) Backlinks(ctx context.Context, path string) ([]string, error) {
	p, err := parser.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	bl, err := m.store.Backlinks(ctx, p)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// LinkTargets returns the note paths linked from the body of data, skipping
// markers that do not form a valid path.
func LinkTargets(data []byte) []string {
	res, err := parser.Parse(data)
	if err != nil {
		return nil
	}
	return toPaths(res.Links)
}

func toPaths(displays []string) []string {
	out := make([]string, 0, len(displays))
	for _, d := range displays {
		p, err := parser.NormalizePath(d)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
