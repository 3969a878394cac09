// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/notegraph"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/vaultsync"
)

// Run starts the HTTP server, the background refresh queue and the vault
// watcher, and blocks until ctx is cancelled or a signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("embedding_model", cfg.Embedding.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := open(cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer c.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	queue := embedding.NewQueue(c.indexer, logger, c.Metrics,
		embedding.WithWorkers(cfg.Refresh.Workers),
		embedding.WithQueueSize(cfg.Refresh.QueueSize),
		embedding.WithOnRefreshed(func(path string, out embedding.Outcome) {
			if out == embedding.OutcomeEmbedded {
				broker.Publish(sse.Event{Type: sse.TypeEmbeddingRefreshed, Data: map[string]string{"path": path}})
			}
		}),
		embedding.WithOnError(func(path string, err error) {
			broker.Publish(sse.Event{Type: sse.TypeEmbeddingFailed, Data: map[string]string{
				"path":  path,
				"error": err.Error(),
			}})
		}),
	)
	c.attachGraph(queue, notegraph.WithEventHandler(func(ev notegraph.Event) {
		broker.PublishGraphChange(sse.Event{Type: string(ev.Kind), Data: ev})
	}))

	apiRouter := api.NewRouter(c.Graph, c.Search, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(c, queue, cfg.Embedding.Enabled()))
	r.Handle("/metrics", c.Metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return queue.Run(gCtx)
	})

	// Initial sync refreshes through the indexer, bypassing the queue.
	g.Go(func() error {
		if _, err := vaultsync.Sync(gCtx, c.Store, c.Vault, c.indexer, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Watcher.Enabled {
		g.Go(func() error {
			err := vaultsync.Watch(gCtx, c.Store, c.Vault, queue, logger, func(kind, path string) {
				broker.PublishGraphChange(sse.Event{Type: "note." + kind, Data: map[string]string{"path": path}})
			})
			if err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the group on a clean shutdown.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. A vault sync runs in the
// background while the server accepts requests.
func RunMCP(ctx context.Context, opts ...Option) error {
	c, err := Open(opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := c.Reindex(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("mcp: initial sync failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return mcpserver.New(c.Graph, c.Search).ServeStdio()
	})
	return g.Wait()
}

type readyResponse struct {
	Status            string `json:"status"`
	Notes             int    `json:"notes"`
	Embeddings        int    `json:"embeddings"`
	Links             int    `json:"links"`
	Pending           int    `json:"pending_refreshes"`
	EmbeddingsEnabled bool   `json:"embeddings_enabled"`
}

func readyHandler(c *Components, queue *embedding.Queue, embeddingsEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		stats, err := c.Store.Stats(r.Context())
		if err != nil {
			c.logger.Error("ready check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(readyResponse{
			Status:            "ok",
			Notes:             stats.Notes,
			Embeddings:        stats.Embeddings,
			Links:             stats.Links,
			Pending:           queue.Pending(),
			EmbeddingsEnabled: embeddingsEnabled,
		})
	}
}
