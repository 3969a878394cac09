package vectorstore

import (
	"context"

	"github.com/starford/ansuz/internal/models"
)

// Store defines the vector-store operations consumers depend on. Consumers
// should accept this interface rather than *DB so tests can substitute it.
type Store interface {
	Upsert(ctx context.Context, r Record) error
	GetEmbedding(ctx context.Context, path string) ([]float32, error)
	AllEmbeddings(ctx context.Context, exclude ...string) ([]models.Candidate, error)
	Delete(ctx context.Context, path string) error
	GetNote(ctx context.Context, path string) (*NoteRow, error)
	EmbeddedChecksums(ctx context.Context) (map[string]string, error)
	ReplaceLinks(ctx context.Context, source string, targets []string) error
	Backlinks(ctx context.Context, target string) ([]string, error)
	Outlinks(ctx context.Context, source string) ([]string, error)
	LinkSources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
