package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/notegraph"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vaultsync"
	"github.com/starford/ansuz/internal/vectorstore"
)

// Components is the wired note graph and similarity engine without any
// transport. One-shot CLI commands use it directly.
type Components struct {
	Graph   *notegraph.Manager
	Search  *similarity.Engine
	Store   *vectorstore.DB
	Vault   *storage.FS
	Metrics *metrics.Metrics

	indexer *embedding.Indexer
	logger  *slog.Logger
}

// Open builds the components with synchronous embedding refreshes: every
// graph mutation returns after the affected notes were re-embedded.
func Open(opts ...Option) (*Components, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: app.config.App.LogLevel}))
	}

	c, err := open(app.config, logger, metrics.New())
	if err != nil {
		return nil, err
	}
	c.attachGraph(c.indexer)
	return c, nil
}

func open(cfg *Config, logger *slog.Logger, m *metrics.Metrics) (*Components, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := vectorstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	provider := newProvider(cfg.Embedding)
	if !cfg.Embedding.Enabled() {
		logger.Warn("embeddings disabled, similarity search is unavailable")
	}

	return &Components{
		Search:  similarity.NewEngine(db, provider, m),
		Store:   db,
		Vault:   fs,
		Metrics: m,
		indexer: embedding.NewIndexer(fs, db, provider, logger, m),
		logger:  logger,
	}, nil
}

func (c *Components) attachGraph(refresher notegraph.Refresher, opts ...notegraph.Option) {
	base := []notegraph.Option{
		notegraph.WithMetrics(c.Metrics),
		notegraph.WithWarningHandler(func(path string, err error) {
			c.logger.Warn("graph: post-commit step failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}),
	}
	c.Graph = notegraph.New(c.Vault, c.Store, refresher, c.logger, append(base, opts...)...)
}

// Reindex reconciles the store with the vault, then re-embeds every note whose
// stored vector is stale, including vectors produced by another model.
func (c *Components) Reindex(ctx context.Context) (vaultsync.Report, error) {
	synced := &recordingRefresher{next: c.indexer, failed: make(map[string]struct{})}
	rep, err := vaultsync.Sync(ctx, c.Store, c.Vault, synced, c.logger)
	if err != nil {
		return rep, err
	}
	metas, err := c.Vault.List("")
	if err != nil {
		return rep, fmt.Errorf("list vault: %w", err)
	}
	for _, m := range metas {
		if _, ok := synced.failed[m.Path]; ok {
			continue
		}
		out, err := c.indexer.Index(ctx, m.Path)
		if err != nil {
			rep.Failed++
			c.logger.Warn("reindex: refresh failed",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
			continue
		}
		if out == embedding.OutcomeEmbedded {
			rep.Refreshed++
		}
	}
	return rep, nil
}

// recordingRefresher remembers the paths whose refresh failed during a sync
// so Reindex does not count them twice.
type recordingRefresher struct {
	next   vaultsync.Refresher
	failed map[string]struct{}
}

func (r *recordingRefresher) Refresh(ctx context.Context, path string) error {
	err := r.next.Refresh(ctx, path)
	if err != nil {
		r.failed[path] = struct{}{}
	}
	return err
}

// Close releases the database.
func (c *Components) Close() error {
	return c.Store.Close()
}

func newProvider(cfg EmbeddingConfig) embedding.Provider {
	if cfg.Provider != EmbeddingProviderOpenAI {
		return embedding.Disabled{}
	}
	return embedding.NewOpenAI(embedding.OpenAIConfig{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Dimensions:        cfg.Dimensions,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	})
}
