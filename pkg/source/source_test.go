package source

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem()

	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/gaps-closure/vscle")

	_, err = src.Read("nonexistent.txt")
	assert.Error(t, err)
}

func TestOverlaySource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(path, []byte("disk"), 0644))

	o := NewOverlay(NewFilesystem())

	content, err := o.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "disk", string(content))

	buf := []byte("memory")
	o.Set(path, buf)
	buf[0] = 'X'

	content, err = o.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", string(content), "Set must copy its input")

	// Same file under a non-canonical spelling.
	content, err = o.Read(filepath.Join(dir, ".", "a.c"))
	require.NoError(t, err)
	assert.Equal(t, "memory", string(content))

	o.Remove(path)
	content, err = o.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "disk", string(content))
}

func TestOverlaySourceUnsavedFile(t *testing.T) {
	o := NewOverlay(NewFilesystem())
	path := filepath.Join(t.TempDir(), "untitled.c")

	_, err := o.Read(path)
	assert.Error(t, err)

	o.Set(path, []byte("#pragma cle begin A"))
	content, err := o.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "#pragma cle begin A", string(content))
}

func TestOverlaySourceConcurrent(t *testing.T) {
	o := NewOverlay(NewFilesystem())
	path := filepath.Join(t.TempDir(), "c.c")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.Set(path, []byte("x"))
		}()
		go func() {
			defer wg.Done()
			_, _ = o.Read(path)
		}()
	}
	wg.Wait()

	content, err := o.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}
