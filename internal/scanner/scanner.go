package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/veil/pkg/config"
)

// Scanner finds C-family source files.
type Scanner struct {
	config   *config.Config
	matchers []rootedMatcher
}

// rootedMatcher applies gitignore patterns to paths relative to base.
type rootedMatcher struct {
	base string
	m    gitignore.Matcher
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
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

// loadExcludePatterns loads exclusion patterns from both config and .gitignore files.
// Config patterns are parsed as gitignore patterns relative to root. Ignore
// files are read from the enclosing git repository, or from root itself
// outside a repository.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = s.matchers[:0]

	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		s.matchers = append(s.matchers, rootedMatcher{base: root, m: gitignore.NewMatcher(patterns)})
	}

	if !s.config.Exclude.Gitignore {
		return
	}
	base := root
	if abs, err := filepath.Abs(root); err == nil {
		if gitRoot := findGitRoot(abs); gitRoot != "" {
			base = gitRoot
		}
	}
	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(base), nil); err == nil && len(gitPatterns) > 0 {
		s.matchers = append(s.matchers, rootedMatcher{base: base, m: gitignore.NewMatcher(gitPatterns)})
	}
}

// isExcluded checks if a path matches a configured directory or any
// exclusion pattern.
func (s *Scanner) isExcluded(path string, isDir bool) bool {
	if isDir {
		name := filepath.Base(path)
		for _, dir := range s.config.Exclude.Dirs {
			if name == dir {
				return true
			}
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, rm := range s.matchers {
		base, err := filepath.Abs(rm.base)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		if rm.m.Match(strings.Split(rel, string(filepath.Separator)), isDir) {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for source files, in lexical order.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	// Resolve root to absolute path for security validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if path != root && s.isExcluded(path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(path, false) {
			return nil
		}
		if s.config.IsSource(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, walkErr
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

	// Add separator to prevent "/root2" matching "/root"
	return strings.HasPrefix(absPath, root+string(filepath.Separator)) || absPath == root
}

// ScanFile checks if a single file should be processed.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}

	if len(s.matchers) == 0 {
		s.loadExcludePatterns(filepath.Dir(path))
	}
	if s.isExcluded(path, false) {
		return false, nil
	}
	return s.config.IsSource(path), nil
}

// Discover expands inputs into a sorted, duplicate-free list of files.
// Directories are scanned recursively for source files. Files named
// explicitly are always included, whatever their extension. Inputs that do
// not exist are reported as warnings.
func (s *Scanner) Discover(inputs []string) ([]string, []string, error) {
	seen := make(map[string]bool)
	var files, warnings []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("path not found: %s", in))
			continue
		}
		if !info.IsDir() {
			add(in)
			continue
		}
		found, err := s.ScanDir(in)
		if err != nil {
			return nil, warnings, fmt.Errorf("scan %s: %w", in, err)
		}
		for _, f := range found {
			add(f)
		}
	}

	sort.Strings(files)
	return files, warnings, nil
}
