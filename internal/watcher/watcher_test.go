package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (s *recordingSink) OnSaved(_ context.Context, item *models.ContentItem, _ indexer.EditContext) indexer.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, item.ID)
	return indexer.OutcomeIndexed
}

func (s *recordingSink) OnDeleted(_ context.Context, contentID string) indexer.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, contentID)
	return indexer.OutcomeRemoved
}

func (s *recordingSink) snapshot() (saved, deleted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...), append([]string(nil), s.deleted...)
}

func startWatcher(t *testing.T) (string, *recordingSink) {
	t.Helper()
	dir := t.TempDir()
	store, err := content.NewFileStore(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	w := NewWatcher(store, sink, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return dir, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestWatcher_SavesWrittenContentFiles(t *testing.T) {
	dir, sink := startWatcher(t)

	if err := writeFile(filepath.Join(dir, "parking.md"), "---\nid: \"42\"\ntitle: Parking\n---\nWhere to park"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "ignored"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		saved, _ := sink.snapshot()
		return contains(saved, "42")
	})
	saved, _ := sink.snapshot()
	if contains(saved, "notes") {
		t.Errorf("non-content file was saved: %v", saved)
	}
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	dir, sink := startWatcher(t)
	path := filepath.Join(dir, "page.md")
	for i := 0; i < 5; i++ {
		if err := writeFile(path, "---\ntitle: Draft\n---\nv"); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool {
		saved, _ := sink.snapshot()
		return len(saved) > 0
	})
	time.Sleep(150 * time.Millisecond)
	saved, _ := sink.snapshot()
	if len(saved) != 1 {
		t.Errorf("expected one debounced save, got %v", saved)
	}
}

func TestWatcher_RemoveDeletesByFrontMatterID(t *testing.T) {
	dir, sink := startWatcher(t)
	path := filepath.Join(dir, "parking.md")
	if err := writeFile(path, "---\nid: \"42\"\n---\nbody"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		saved, _ := sink.snapshot()
		return contains(saved, "42")
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, deleted := sink.snapshot()
		return contains(deleted, "42")
	})
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir, sink := startWatcher(t)

	nested := filepath.Join(dir, "news", "2024")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "launch.md"), "---\ntitle: Launch\n---\nbody"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		saved, _ := sink.snapshot()
		return contains(saved, "news/2024/launch")
	})
}

func TestWatcher_HiddenDirectoriesAreIgnored(t *testing.T) {
	dir, sink := startWatcher(t)
	hiddenDir := filepath.Join(dir, ".git")
	if err := mkdirAll(hiddenDir); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(hiddenDir, "x.md"), "body"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "visible.md"), "body"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		saved, _ := sink.snapshot()
		return contains(saved, "visible")
	})
	saved, _ := sink.snapshot()
	if contains(saved, ".git/x") {
		t.Errorf("hidden file was saved: %v", saved)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	store, err := content.NewFileStore(t.TempDir(), 1)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(store, &recordingSink{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
