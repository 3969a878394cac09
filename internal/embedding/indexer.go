package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vectorstore"
)

// Outcome describes what a refresh did.
type Outcome string

const (
	OutcomeEmbedded  Outcome = "embedded"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRemoved   Outcome = "removed"
	OutcomeFailed    Outcome = "failed"
)

// Indexer refreshes the stored embedding of one note synchronously.
type Indexer struct {
	fs       storage.Provider
	store    vectorstore.Store
	provider Provider
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	paths map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// NewIndexer creates an Indexer. m may be nil.
func NewIndexer(fs storage.Provider, store vectorstore.Store, provider Provider, logger *slog.Logger, m *metrics.Metrics) *Indexer {
	return &Indexer{fs: fs, store: store, provider: provider, logger: logger, metrics: m}
}

// Refresh brings the stored (content, vector) pair of path in line with the
// file on disk.
func (ix *Indexer) Refresh(ctx context.Context, path string) error {
	_, err := ix.Index(ctx, path)
	return err
}

// Index is Refresh reporting what it did. The provider is skipped when the
// stored embedding was computed from identical content with the same model.
// A file that no longer exists has its row removed. Calls for the same path
// run one at a time, so the last one to start stores the newest content.
func (ix *Indexer) Index(ctx context.Context, path string) (out Outcome, err error) {
	unlock := ix.lock(path)
	defer unlock()
	defer func() {
		if err != nil {
			out = OutcomeFailed
		}
		ix.metrics.RefreshDone(string(out))
	}()

	data, err := ix.fs.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := ix.store.Delete(ctx, path); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return OutcomeUnchanged, nil
			}
			return "", err
		}
		return OutcomeRemoved, nil
	}
	if err != nil {
		return "", apperr.E(apperr.KindStorage, "embedding: read", path, err)
	}

	sum := checksum.Sum(data)
	row, err := ix.store.GetNote(ctx, path)
	switch {
	case err == nil:
		if row.Embedded && row.EmbeddingChecksum == sum && row.EmbeddingModel == ix.provider.Model() {
			return OutcomeUnchanged, nil
		}
	case !apperr.Is(err, apperr.KindNotFound):
		return "", err
	}

	content := string(data)
	start := time.Now()
	vec, err := ix.provider.Embed(ctx, content)
	ix.metrics.ObserveEmbed(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("embed %s: %w", path, err)
	}

	title := parser.Title(path)
	if parsed, perr := parser.Parse(data); perr == nil && parsed.Title != "" {
		title = parsed.Title
	}
	modified := time.Now()
	if meta, serr := ix.fs.Stat(path); serr == nil {
		modified = meta.ModifiedAt
	}

	if err := ix.store.Upsert(ctx, vectorstore.Record{
		Path:       path,
		Title:      title,
		Content:    content,
		ModifiedAt: modified,
		Embedding:  vec,
		Model:      ix.provider.Model(),
	}); err != nil {
		return "", err
	}

	ix.logger.Debug("embedding: refreshed", slog.String("path", path), slog.Int("dims", len(vec)))
	return OutcomeEmbedded, nil
}

// lock serializes refreshes of one path and returns the release func.
func (ix *Indexer) lock(path string) func() {
	ix.mu.Lock()
	if ix.paths == nil {
		ix.paths = make(map[string]*pathLock)
	}
	l, ok := ix.paths[path]
	if !ok {
		l = &pathLock{}
		ix.paths[path] = l
	}
	l.refs++
	ix.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ix.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ix.paths, path)
		}
		ix.mu.Unlock()
	}
}
