package scanner

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/parser"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Scanner enumerates C/C++ source files under the configured source
// directories.
type Scanner struct {
	config *config.Config
	logger *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for skipped paths.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PathError indicates an invalid source directory.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a scanning failure.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan directory " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// matcher is a gitignore matcher together with the directory its patterns
// are relative to.
type matcher struct {
	base string
	m    gitignore.Matcher
}

func (m matcher) match(absPath string, isDir bool) bool {
	rel, err := filepath.Rel(m.base, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.m.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds the matchers for one walk. Config patterns are
// relative to the walk root, .gitignore patterns to the repository root.
func (s *Scanner) loadExcludePatterns(root string) []matcher {
	var matchers []matcher

	if len(s.config.Exclude.Patterns) > 0 {
		var patterns []gitignore.Pattern
		for _, pattern := range s.config.Exclude.Patterns {
			patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
		}
		matchers = append(matchers, matcher{base: root, m: gitignore.NewMatcher(patterns)})
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
			if err != nil {
				s.logger.Warn("reading .gitignore failed", "root", gitRoot, "error", err)
			} else if len(gitPatterns) > 0 {
				matchers = append(matchers, matcher{base: gitRoot, m: gitignore.NewMatcher(gitPatterns)})
			}
		}
	}

	return matchers
}

func excluded(matchers []matcher, absPath string, isDir bool) bool {
	for _, m := range matchers {
		if m.match(absPath, isDir) {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for source files. Files are
// returned in lexical walk order. Unreadable subdirectories are logged
// and skipped; symlinks resolving outside root are ignored.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &PathError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: root, Err: fs.ErrInvalid}
	}

	matchers := s.loadExcludePatterns(absRoot)
	files := make([]string, 0, 64)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
			// WalkDir does not follow symlinks; only linked files are kept.
			if fi, err := os.Stat(resolved); err != nil || fi.IsDir() {
				return nil
			}
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if s.config.ShouldExcludeDir(d.Name()) || excluded(matchers, path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if excluded(matchers, path, false) {
			return nil
		}
		if parser.DetectLanguage(path) != parser.LangUnknown {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return files, &ScanError{Path: root, Err: walkErr}
	}

	return files, nil
}

// SourceSet enumerates the C/C++ files under every configured source
// directory, in configuration order then walk order. Directories that
// cannot be scanned are logged and contribute no files. A file reachable
// from two overlapping roots is listed once.
func (s *Scanner) SourceSet() []string {
	var files []string
	seen := make(map[string]struct{})
	for _, dir := range s.config.SourceDirs {
		found, err := s.ScanDir(dir)
		if err != nil {
			s.logger.Warn("skipping source directory", "dir", dir, "error", err)
		}
		for _, f := range found {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	return files
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// "/root2" must not match "/root"
	if !strings.HasPrefix(absPath, root+string(filepath.Separator)) && absPath != root {
		return false
	}

	return true
}

// Includes reports whether path belongs to the source set: a C/C++ file
// under a source directory that no exclusion rule drops. It applies the
// same rules as SourceSet without walking the tree, so it also answers for
// files that were just removed.
func (s *Scanner) Includes(path string) bool {
	if parser.DetectLanguage(path) == parser.LangUnknown {
		return false
	}
	abs, err := resolvePath(path)
	if err != nil {
		return false
	}
	for _, dir := range s.config.SourceDirs {
		root, err := resolvePath(dir)
		if err != nil || abs == root || !isWithinRoot(abs, root) {
			continue
		}
		if s.includedUnder(root, abs) {
			return true
		}
	}
	return false
}

// includedUnder checks every directory between root and abs, then abs
// itself, against the exclusion rules of a walk from root.
func (s *Scanner) includedUnder(root, abs string) bool {
	matchers := s.loadExcludePatterns(root)
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	dir := root
	for _, name := range parts[:len(parts)-1] {
		dir = filepath.Join(dir, name)
		if s.config.ShouldExcludeDir(name) || excluded(matchers, dir, true) {
			return false
		}
	}
	return !excluded(matchers, abs, false)
}

// resolvePath makes path absolute and resolves symlinks. A path that no
// longer exists is resolved through its parent directory.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}
