package vaultsync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vectorstore"
)

// testEnv sets up a vault dir, storage, DB and a synchronous indexer.
func testEnv(t *testing.T) (string, *storage.FS, *vectorstore.DB, *embedding.Indexer) {
	t.Helper()
	vaultDir := t.TempDir()
	fs, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "ansuz-sync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := vectorstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	provider := embedding.Func(func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text)), 1}, nil
	})
	ix := embedding.NewIndexer(fs, db, provider, quietLogger(), nil)
	return vaultDir, fs, db, ix
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func embedded(db *vectorstore.DB, path string) bool {
	_, err := db.GetEmbedding(context.Background(), path)
	return err == nil
}

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	vaultDir, fs, db, ix := testEnv(t)
	ctx := context.Background()

	_ = os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("# a\n\n[[b]]\n"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "b.md"), []byte("# b"), 0o644)

	rep, err := Sync(ctx, db, fs, ix, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Scanned != 2 || rep.Refreshed != 2 {
		t.Errorf("report = %+v, want 2 scanned and 2 refreshed", rep)
	}
	bl, _ := db.Backlinks(ctx, "b.md")
	if !reflect.DeepEqual(bl, []string{"a.md"}) {
		t.Errorf("backlinks = %v, want [a.md]", bl)
	}

	// Second pass finds nothing to do.
	rep, _ = Sync(ctx, db, fs, ix, quietLogger())
	if rep.Refreshed != 0 {
		t.Errorf("second pass refreshed %d notes, want 0", rep.Refreshed)
	}

	_ = os.Remove(filepath.Join(vaultDir, "a.md"))
	rep, _ = Sync(ctx, db, fs, ix, quietLogger())
	if rep.Removed != 1 {
		t.Errorf("removed = %d, want 1", rep.Removed)
	}
	if _, err := db.GetNote(ctx, "a.md"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("stale row still present: %v", err)
	}
	bl, _ = db.Backlinks(ctx, "b.md")
	if len(bl) != 0 {
		t.Errorf("backlinks after removal = %v, want none", bl)
	}
}

func TestSync_CountsRefreshFailures(t *testing.T) {
	vaultDir, fs, db, _ := testEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("# a"), 0o644)

	ix := embedding.NewIndexer(fs, db, embedding.Disabled{}, quietLogger(), nil)
	rep, err := Sync(context.Background(), db, fs, ix, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Failed != 1 || rep.Refreshed != 0 {
		t.Errorf("report = %+v, want one failure", rep)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, fs, db, ix := testEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, fs, ix, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return embedded(db, "new.md")
	}, "new file not embedded by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" {
				return true
			}
		}
		return false
	}, "expected created:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, fs, db, ix := testEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, fs, ix, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return embedded(db, "subdir/deep.md")
	}, "file in new subdir not embedded by watcher")
}

func TestWatcher_DeleteRemovesRow(t *testing.T) {
	vaultDir, fs, db, ix := testEnv(t)

	_ = os.WriteFile(filepath.Join(vaultDir, "del.md"), []byte("# Delete Me"), 0o644)
	if _, err := Sync(context.Background(), db, fs, ix, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if !embedded(db, "del.md") {
		t.Fatal("precondition: file should be embedded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, fs, ix, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !embedded(db, "del.md")
	}, "deleted file still in store")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, fs, db, ix := testEnv(t)

	_ = os.WriteFile(filepath.Join(vaultDir, "old.md"), []byte("# Rename"), 0o644)
	if _, err := Sync(context.Background(), db, fs, ix, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, fs, ix, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !embedded(db, "old.md") && embedded(db, "renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path embedded")
}
