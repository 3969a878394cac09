package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// Record is one (content, embedding) pair written by Upsert.
type Record struct {
	Path       string
	Title      string
	Content    string
	ModifiedAt time.Time
	Embedding  []float32
	Model      string
}

// NoteRow is a row of the notes table joined with its embedding metadata.
type NoteRow struct {
	ID                int64
	Path              string
	Title             string
	Content           string
	Checksum          string
	ModifiedAt        time.Time
	Embedded          bool
	EmbeddingChecksum string
	EmbeddingModel    string
}

// Stats summarises the store.
type Stats struct {
	Notes      int `json:"notes"`
	Embeddings int `json:"embeddings"`
	Links      int `json:"links"`
}

func storageErr(op, path string, err error) error {
	return apperr.E(apperr.KindStorage, "vectorstore: "+op, path, err)
}

// Upsert writes a note row and its embedding in one transaction. The note row
// is inserted or updated in place (unique on path); the embedding row is
// inserted or updated in place for that note id.
func (db *DB) Upsert(ctx context.Context, r Record) error {
	if r.Path == "" {
		return apperr.Errorf(apperr.KindInvalid, "vectorstore: upsert", "empty path")
	}
	if len(r.Embedding) == 0 {
		return apperr.E(apperr.KindInvalid, "vectorstore: upsert", r.Path, errors.New("empty embedding"))
	}
	if r.ModifiedAt.IsZero() {
		r.ModifiedAt = time.Now()
	}
	cs := checksum.String(r.Content)

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", r.Path, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (path, title, content, checksum, modified_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			content     = excluded.content,
			checksum    = excluded.checksum,
			modified_at = excluded.modified_at
	`, r.Path, r.Title, r.Content, cs, r.ModifiedAt)
	if err != nil {
		return storageErr("upsert note", r.Path, err)
	}

	var noteID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM notes WHERE path = ?`, r.Path).Scan(&noteID); err != nil {
		return storageErr("lookup note id", r.Path, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (note_id, model, dims, vector, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			model      = excluded.model,
			dims       = excluded.dims,
			vector     = excluded.vector,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, noteID, r.Model, len(r.Embedding), encodeVector(r.Embedding), cs, time.Now())
	if err != nil {
		return storageErr("upsert embedding", r.Path, err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", r.Path, err)
	}
	return nil
}

// GetEmbedding returns the stored vector for path, or apperr.KindNotFound.
func (db *DB) GetEmbedding(ctx context.Context, path string) ([]float32, error) {
	var (
		blob []byte
		dims int
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT e.vector, e.dims
		FROM embeddings e JOIN notes n ON n.id = e.note_id
		WHERE n.path = ?
	`, path).Scan(&blob, &dims)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.KindNotFound, "vectorstore: get embedding", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get embedding", path, err)
	}
	v, err := decodeVector(blob, dims)
	if err != nil {
		return nil, storageErr("get embedding", path, err)
	}
	return v, nil
}

// AllEmbeddings returns every stored vector in note insertion order, leaving
// out the given paths.
func (db *DB) AllEmbeddings(ctx context.Context, exclude ...string) ([]models.Candidate, error) {
	query := `
		SELECT n.path, e.vector, e.dims
		FROM embeddings e JOIN notes n ON n.id = e.note_id`
	args := make([]any, 0, len(exclude))
	if len(exclude) > 0 {
		query += ` WHERE n.path NOT IN (?` + strings.Repeat(`, ?`, len(exclude)-1) + `)`
		for _, p := range exclude {
			args = append(args, p)
		}
	}
	query += ` ORDER BY n.id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("all embeddings", "", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			c    models.Candidate
			blob []byte
			dims int
		)
		if err := rows.Scan(&c.Path, &blob, &dims); err != nil {
			return nil, storageErr("scan embedding", "", err)
		}
		if c.Vector, err = decodeVector(blob, dims); err != nil {
			return nil, storageErr("decode embedding", c.Path, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("all embeddings", "", err)
	}
	return out, nil
}

// Delete removes the note row (cascading to its embedding) and the link
// cache rows sourced at path.
func (db *DB) Delete(ctx context.Context, path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", path, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, path); err != nil {
		return storageErr("delete links", path, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE path = ?`, path)
	if err != nil {
		return storageErr("delete note", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete note", path, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", path, err)
	}
	if n == 0 {
		return apperr.E(apperr.KindNotFound, "vectorstore: delete", path, apperr.ErrNotFound)
	}
	return nil
}

// GetNote returns the stored row for path, or apperr.KindNotFound.
func (db *DB) GetNote(ctx context.Context, path string) (*NoteRow, error) {
	var (
		r        NoteRow
		embCS    sql.NullString
		embModel sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT n.id, n.path, n.title, n.content, n.checksum, n.modified_at, e.checksum, e.model
		FROM notes n LEFT JOIN embeddings e ON e.note_id = n.id
		WHERE n.path = ?
	`, path).Scan(&r.ID, &r.Path, &r.Title, &r.Content, &r.Checksum, &r.ModifiedAt, &embCS, &embModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.KindNotFound, "vectorstore: get note", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get note", path, err)
	}
	r.Embedded = embCS.Valid
	r.EmbeddingChecksum = embCS.String
	r.EmbeddingModel = embModel.String
	return &r, nil
}

// EmbeddedChecksums maps every stored note path to the checksum of the
// content its embedding was computed from.
func (db *DB) EmbeddedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.path, COALESCE(e.checksum, '')
		FROM notes n LEFT JOIN embeddings e ON e.note_id = n.id
	`)
	if err != nil {
		return nil, storageErr("embedded checksums", "", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, storageErr("scan checksum", "", err)
		}
		out[p] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("embedded checksums", "", err)
	}
	return out, nil
}

// Stats counts notes, embeddings and cached links.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM notes),
		       (SELECT count(*) FROM embeddings),
		       (SELECT count(*) FROM links)
	`).Scan(&s.Notes, &s.Embeddings, &s.Links)
	if err != nil {
		return Stats{}, storageErr("stats", "", err)
	}
	return s, nil
}
