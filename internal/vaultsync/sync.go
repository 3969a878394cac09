// Package vaultsync reconciles the vector store with the vault directory at
// startup and while files change underneath the engine.
package vaultsync

import (
	"context"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/notegraph"
	"github.com/starford/ansuz/internal/storage"
)

// Refresher recomputes the stored embedding of a note.
type Refresher interface {
	Refresh(ctx context.Context, path string) error
}

// Store is the part of the vector store sync maintains.
type Store interface {
	EmbeddedChecksums(ctx context.Context) (map[string]string, error)
	LinkSources(ctx context.Context) ([]string, error)
	ReplaceLinks(ctx context.Context, source string, targets []string) error
	Delete(ctx context.Context, path string) error
}

// Report counts what a Sync pass did.
type Report struct {
	Scanned   int `json:"scanned"`
	Refreshed int `json:"refreshed"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Sync walks the vault and brings the store up to date:
//   - the link cache of every file is rebuilt
//   - files whose content differs from the embedded content are refreshed
//   - rows for files removed from disk are deleted
//
// Per-file failures are logged and counted; only listing errors abort.
func Sync(ctx context.Context, store Store, fs storage.Provider, refresher Refresher, logger *slog.Logger) (Report, error) {
	var rep Report

	metas, err := fs.List("")
	if err != nil {
		return rep, apperr.E(apperr.KindStorage, "sync: list", "", err)
	}
	checksums, err := store.EmbeddedChecksums(ctx)
	if err != nil {
		return rep, err
	}
	sources, err := store.LinkSources(ctx)
	if err != nil {
		return rep, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		disk[m.Path] = struct{}{}
		rep.Scanned++

		if err := indexLinks(ctx, store, fs, m.Path); err != nil {
			logger.Warn("sync: link cache failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		if err := refresher.Refresh(ctx, m.Path); err != nil {
			rep.Failed++
			logger.Warn("sync: refresh failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		rep.Refreshed++
		logger.Debug("sync: refreshed", slog.String("path", m.Path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := store.Delete(ctx, p); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		rep.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}
	for _, p := range sources {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := store.ReplaceLinks(ctx, p, nil); err != nil {
			logger.Warn("sync: clear links failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}

	logger.Info("sync: complete",
		slog.Int("scanned", rep.Scanned),
		slog.Int("refreshed", rep.Refreshed),
		slog.Int("removed", rep.Removed),
		slog.Int("failed", rep.Failed),
	)
	return rep, nil
}

// indexLinks rebuilds the cached forward links of path from its content.
func indexLinks(ctx context.Context, store Store, fs storage.Provider, path string) error {
	data, err := fs.Read(path)
	if err != nil {
		return err
	}
	return store.ReplaceLinks(ctx, path, notegraph.LinkTargets(data))
}
