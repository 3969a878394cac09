// Package notegraph creates notes and keeps forward links and "Linked From"
// backlink sections symmetric. Every committed write is followed by an
// embedding refresh whose failure never undoes the write.
package notegraph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vectorstore"
)

// Refresher recomputes the stored embedding of a note after its content
// changed. Implementations may work synchronously or only schedule the work.
type Refresher interface {
	Refresh(ctx context.Context, path string) error
}

// Store is the part of the vector store the manager maintains: the derived
// link cache and the note rows.
type Store interface {
	ReplaceLinks(ctx context.Context, source string, targets []string) error
	Backlinks(ctx context.Context, target string) ([]string, error)
	GetNote(ctx context.Context, path string) (*vectorstore.NoteRow, error)
	Delete(ctx context.Context, path string) error
}

// EventKind names a committed graph change.
type EventKind string

const (
	EventCreated EventKind = "note.created"
	EventUpdated EventKind = "note.updated"
	EventDeleted EventKind = "note.deleted"
	EventLinked  EventKind = "note.linked"
)

// Event describes a committed change. Target is set for EventLinked.
type Event struct {
	Kind   EventKind `json:"kind"`
	Path   string    `json:"path"`
	Target string    `json:"target,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithWarningHandler receives errors from steps that run after a write was
// committed (link cache, embedding refresh).
func WithWarningHandler(fn func(path string, err error)) Option {
	return func(m *Manager) { m.onWarning = fn }
}

// WithEventHandler receives every committed change.
func WithEventHandler(fn func(Event)) Option {
	return func(m *Manager) { m.onEvent = fn }
}

// WithMetrics counts committed mutations.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns all note mutations. Mutations are serialised.
type Manager struct {
	fs        storage.Provider
	store     Store
	refresher Refresher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onWarning func(string, error)
	onEvent   func(Event)

	mu sync.Mutex
}

// New creates a Manager. refresher may be nil, in which case embeddings are
// never refreshed.
func New(fs storage.Provider, store Store, refresher Refresher, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{fs: fs, store: store, refresher: refresher, logger: logger}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EnsureExists creates the note with a title header and an empty backlink
// section when it does not exist yet. created reports whether it did.
func (m *Manager) EnsureExists(ctx context.Context, path string) (created bool, err error) {
	p, err := parser.NormalizePath(path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureExists(ctx, p)
}

// AddLink inserts a marker for to into from's body and records from in to's
// backlink section. Both notes are created when missing. Repeating the call
// changes nothing.
func (m *Manager) AddLink(ctx context.Context, from, to string) error {
	src, err := parser.NormalizePath(from)
	if err != nil {
		return err
	}
	dst, err := parser.NormalizePath(to)
	if err != nil {
		return err
	}
	if src == dst {
		return apperr.Errorf(apperr.KindInvalid, "notegraph: add link", "note cannot link to itself: %s", src)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.ensureExists(ctx, src); err != nil {
		return err
	}
	if _, err := m.ensureExists(ctx, dst); err != nil {
		return err
	}

	content, err := m.read(src)
	if err != nil {
		return err
	}
	if updated, changed := parser.InsertLink(content, dst); changed {
		if err := m.commit(ctx, src, updated, EventUpdated, "add_link"); err != nil {
			return err
		}
	}
	if err := m.addBacklink(ctx, dst, src); err != nil {
		return err
	}
	m.emit(Event{Kind: EventLinked, Path: src, Target: dst})
	return nil
}

// AddBacklink lists source in target's backlink section, most recent first.
// An existing entry is left alone and nothing is written.
func (m *Manager) AddBacklink(ctx context.Context, target, source string) error {
	dst, err := parser.NormalizePath(target)
	if err != nil {
		return err
	}
	src, err := parser.NormalizePath(source)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addBacklink(ctx, dst, src)
}

// Update replaces the content of an existing note. A non-empty ifMatch must
// equal the checksum of the current content. Notes newly linked from the
// content gain a backlink entry.
func (m *Manager) Update(ctx context.Context, path, content, ifMatch string) error {
	p, err := parser.NormalizePath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, err := m.fs.Stat(p)
	if err != nil {
		return m.storageErr("notegraph: update", p, err)
	}
	if ifMatch != "" && ifMatch != meta.Checksum {
		return apperr.E(apperr.KindConflict, "notegraph: update", p, apperr.ErrConflict)
	}
	if err := m.commit(ctx, p, content, EventUpdated, "update"); err != nil {
		return err
	}

	for _, target := range LinkTargets([]byte(content)) {
		if target == p {
			continue
		}
		if _, err := m.ensureExists(ctx, target); err != nil {
			return err
		}
		if err := m.addBacklink(ctx, target, p); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the note file and its stored rows. Backlink entries in other
// notes are left in place.
func (m *Manager) Delete(ctx context.Context, path string) error {
	p, err := parser.NormalizePath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fs.Delete(p); err != nil {
		return m.storageErr("notegraph: delete", p, err)
	}
	m.metrics.GraphMutation("delete")
	if err := m.store.Delete(ctx, p); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		m.warn(p, err)
	}
	// Clears the link cache when the note was never embedded.
	if err := m.store.ReplaceLinks(ctx, p, nil); err != nil {
		m.warn(p, err)
	}
	m.emit(Event{Kind: EventDeleted, Path: p})
	return nil
}

func (m *Manager) ensureExists(ctx context.Context, p string) (bool, error) {
	_, err := m.fs.Stat(p)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, m.storageErr("notegraph: stat", p, err)
	}
	if err := m.commit(ctx, p, parser.NewNote(p), EventCreated, "create"); err != nil {
		return false, err
	}
	m.logger.Info("notegraph: note created", slog.String("path", p))
	return true, nil
}

func (m *Manager) addBacklink(ctx context.Context, target, source string) error {
	content, err := m.read(target)
	if err != nil {
		return err
	}
	updated, changed := parser.AddBacklink(content, source)
	if !changed {
		return nil
	}
	return m.commit(ctx, target, updated, EventUpdated, "add_backlink")
}

// commit writes content, then refreshes the link cache and the embedding.
// Only the write can fail the call.
func (m *Manager) commit(ctx context.Context, p, content string, kind EventKind, op string) error {
	if err := m.fs.Write(p, []byte(content)); err != nil {
		return apperr.E(apperr.KindStorage, "notegraph: write", p, err)
	}
	m.metrics.GraphMutation(op)

	if err := m.store.ReplaceLinks(ctx, p, LinkTargets([]byte(content))); err != nil {
		m.warn(p, err)
	}
	if m.refresher != nil {
		if err := m.refresher.Refresh(ctx, p); err != nil {
			m.warn(p, err)
		}
	}
	m.emit(Event{Kind: kind, Path: p})
	return nil
}

func (m *Manager) read(p string) (string, error) {
	data, err := m.fs.Read(p)
	if err != nil {
		return "", m.storageErr("notegraph: read", p, err)
	}
	return string(data), nil
}

func (m *Manager) storageErr(op, p string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return apperr.E(apperr.KindNotFound, op, p, apperr.ErrNotFound)
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.E(apperr.KindStorage, op, p, err)
}

func (m *Manager) warn(p string, err error) {
	m.logger.Warn("notegraph: post-commit step failed",
		slog.String("path", p),
		slog.String("error", err.Error()),
	)
	if m.onWarning != nil {
		m.onWarning(p, err)
	}
}

func (m *Manager) emit(e Event) {
	if m.onEvent != nil {
		m.onEvent(e)
	}
}
