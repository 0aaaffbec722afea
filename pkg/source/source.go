package source

import (
	"os"
	"path/filepath"
	"sync"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// OverlaySource serves in-memory content for open documents and falls back
// to a base source for everything else.
// It is safe for concurrent use by multiple goroutines.
type OverlaySource struct {
	base ContentSource
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewOverlay creates an overlay on top of base.
func NewOverlay(base ContentSource) *OverlaySource {
	return &OverlaySource{base: base, docs: make(map[string][]byte)}
}

// Set replaces the in-memory content for path.
func (o *OverlaySource) Set(path string, content []byte) {
	buf := make([]byte, len(content))
	copy(buf, content)
	o.mu.Lock()
	o.docs[key(path)] = buf
	o.mu.Unlock()
}

// Remove drops the in-memory content for path.
func (o *OverlaySource) Remove(path string) {
	o.mu.Lock()
	delete(o.docs, key(path))
	o.mu.Unlock()
}

// Read implements ContentSource.
func (o *OverlaySource) Read(path string) ([]byte, error) {
	o.mu.RLock()
	content, ok := o.docs[key(path)]
	o.mu.RUnlock()
	if ok {
		return content, nil
	}
	return o.base.Read(path)
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
