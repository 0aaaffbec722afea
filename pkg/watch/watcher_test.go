package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/pkg/config"
)

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{dir}
	return cfg, dir
}

func TestNewWatcher(t *testing.T) {
	cfg, dir := testConfig(t)

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, DefaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, DefaultDebounce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWatcher(cfg, tt.debounce, nil)
			require.NoError(t, err)
			defer w.Stop()

			assert.Equal(t, tt.want, w.debounce)
			assert.Equal(t, []string{dir}, w.roots)
			assert.NotNil(t, w.pending)
		})
	}
}

func TestAddTreeSkipsExcluded(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, "build")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "nested"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build", "obj"), 0755))

	w, err := NewWatcher(cfg, time.Second, nil)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.addTree(dir))
	watched := w.WatchedDirs()
	assert.Contains(t, watched, dir)
	assert.Contains(t, watched, filepath.Join(dir, "src", "nested"))
	assert.NotContains(t, watched, filepath.Join(dir, "build"))
	assert.NotContains(t, watched, filepath.Join(dir, "build", "obj"))
}

func TestHandleEventFilters(t *testing.T) {
	cfg, dir := testConfig(t)
	w, err := NewWatcher(cfg, time.Second, nil)
	require.NoError(t, err)
	defer w.Stop()

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "a.c"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "b.hpp"), Op: fsnotify.Remove})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "c.c"), Op: fsnotify.Chmod})

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.pending, 2)
	assert.Contains(t, w.pending, filepath.Join(dir, "a.c"))
	assert.Contains(t, w.pending, filepath.Join(dir, "b.hpp"))
}

func TestHandleEventMatchesSourceSet(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Exclude.Gitignore = true
	cfg.Exclude.Patterns = []string{"*_gen.c"}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ignored"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("ignored/\nscratch.c\n"), 0644))

	files := []string{"kept.c", "scratch.c", "tables_gen.c", filepath.Join("ignored", "x.c")}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("int x;\n"), 0644))
	}

	w, err := NewWatcher(cfg, time.Second, nil)
	require.NoError(t, err)
	defer w.Stop()

	for _, f := range files {
		w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, f), Op: fsnotify.Write})
	}

	set := scanner.NewScanner(cfg).SourceSet()
	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.pending, 1)
	assert.Contains(t, w.pending, filepath.Join(dir, "kept.c"))
	for path := range w.pending {
		assert.Contains(t, set, path)
	}
}

func TestTakeReady(t *testing.T) {
	cfg, _ := testConfig(t)
	w, err := NewWatcher(cfg, time.Second, nil)
	require.NoError(t, err)
	defer w.Stop()

	now := time.Now()
	w.pending["z.c"] = now.Add(-2 * time.Second)
	w.pending["a.c"] = now.Add(-3 * time.Second)
	w.pending["fresh.c"] = now

	assert.Equal(t, []string{"a.c", "z.c"}, w.takeReady(now))
	assert.Len(t, w.pending, 1)
	assert.Empty(t, w.takeReady(now))
}

func TestStartDeliversBatch(t *testing.T) {
	cfg, dir := testConfig(t)
	w, err := NewWatcher(cfg, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	var (
		mu      sync.Mutex
		batches [][]string
	)
	got := make(chan struct{}, 1)
	w.SetCallback(func(_ context.Context, changed []string) {
		mu.Lock()
		batches = append(batches, changed)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watcher time to register the directory.
	require.Eventually(t, func() bool { return len(w.WatchedDirs()) > 0 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main(void) { return 0; }\n"), 0644))

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, batches)
	assert.Equal(t, []string{filepath.Join(dir, "main.c")}, batches[0])
}

func TestStop(t *testing.T) {
	cfg, _ := testConfig(t)
	w, err := NewWatcher(cfg, time.Second, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}
