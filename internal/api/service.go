package api

import (
	"context"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/similarity"
)

// Graph is the note graph the API mutates and reads.
type Graph interface {
	Get(ctx context.Context, path string) (*models.Note, error)
	List(ctx context.Context) ([]models.NoteMetadata, error)
	Update(ctx context.Context, path, content, ifMatch string) error
	Delete(ctx context.Context, path string) error
	OpenOrCreate(ctx context.Context, query string) (*models.Note, bool, error)
	CreateLink(ctx context.Context, from, query string) (string, error)
	Follow(ctx context.Context, marker string) (string, error)
	Backlinks(ctx context.Context, path string) ([]string, error)
}

// Searcher runs similarity searches.
type Searcher interface {
	SearchByText(ctx context.Context, text string, limit int) ([]similarity.Result, error)
	FindSimilar(ctx context.Context, path string, limit int) ([]similarity.Result, error)
}
