// Package testutil builds CLE source trees and settings for tests.
package testutil

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/gaps-closure/vscle/pkg/config"
)

// SampleSource is a small annotated C file: two labels, each wrapping one
// function. Zero-based lines: 0-1 definitions, 3 and 7 ORANGE begin/end
// around get_a (4), 9 and 13 PURPLE begin/end around get_b (10).
const SampleSource = `#pragma cle def ORANGE {"level":"orange"}
#pragma cle def PURPLE {"level":"purple"}

#pragma cle begin ORANGE
int get_a(void) {
  return 1;
}
#pragma cle end ORANGE

#pragma cle begin PURPLE
int get_b(void) {
  return 2;
}
#pragma cle end PURPLE
`

// WriteFile writes content to path, creating parent directories, and
// returns the path with symlinks resolved so it compares equal to paths
// produced by a directory walk.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s) error: %v", path, err)
	}
	return resolved
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}

// FreeEndpoint returns a tcp:// endpoint on a loopback port that was free
// a moment ago.
func FreeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	defer l.Close()
	return fmt.Sprintf("tcp://127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port)
}

// SourceTree writes SampleSource as example1.c in a fresh source directory
// and returns settings pointing at it, plus the file path. Gitignore
// handling and the parse cache are off; output goes to its own temp dir.
func SourceTree(t *testing.T) (*config.Config, string) {
	t.Helper()
	file := WriteFile(t, filepath.Join(t.TempDir(), "src", "example1.c"), SampleSource)

	cfg := config.DefaultConfig()
	cfg.SourceDirs = []string{filepath.Dir(file)}
	cfg.OutputPath = t.TempDir()
	cfg.ZMQURI = FreeEndpoint(t)
	cfg.Exclude.Gitignore = false
	cfg.Cache.Enabled = false
	return cfg, file
}
