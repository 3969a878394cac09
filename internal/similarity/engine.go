package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// Embedder computes the query vector for text searches.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the read side of the vector store.
type Store interface {
	GetEmbedding(ctx context.Context, path string) ([]float32, error)
	AllEmbeddings(ctx context.Context, exclude ...string) ([]models.Candidate, error)
}

// Engine runs similarity searches by text or by reference note.
type Engine struct {
	store    Store
	embedder Embedder
	metrics  *metrics.Metrics
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(store Store, embedder Embedder, m *metrics.Metrics) *Engine {
	return &Engine{store: store, embedder: embedder, metrics: m}
}

// SearchByText embeds text and ranks every stored note against it. Provider
// errors are returned unchanged.
func (e *Engine) SearchByText(ctx context.Context, text string, limit int) (res []Result, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveSearch("text", time.Since(start), err) }()

	if strings.TrimSpace(text) == "" {
		return nil, apperr.E(apperr.KindInvalid, "search", "", fmt.Errorf("empty query: %w", apperr.ErrInvalid))
	}
	query, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	candidates, err := e.store.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return Search(query, candidates, limit), nil
}

// FindSimilar ranks every other note against the stored embedding of path.
// A note without a stored embedding is apperr.KindNotFound.
func (e *Engine) FindSimilar(ctx context.Context, path string, limit int) (res []Result, err error) {
	start := time.Now()
	defer func() { e.metrics.ObserveSearch("note", time.Since(start), err) }()

	p, err := parser.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	query, err := e.store.GetEmbedding(ctx, p)
	if err != nil {
		return nil, err
	}
	candidates, err := e.store.AllEmbeddings(ctx, p)
	if err != nil {
		return nil, err
	}
	return Search(query, candidates, limit), nil
}
