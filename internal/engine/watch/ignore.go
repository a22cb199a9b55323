package watch

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreMatcher applies gitignore-style patterns plus a fixed set of
// always-ignored noise (VCS metadata, OS cruft, editor swap files) so a
// watched tree doesn't trigger a sync pass on its own bookkeeping.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern    string
	isNegation bool
	isDir      bool
}

// NewIgnoreMatcher builds an IgnoreMatcher from patterns (gitignore syntax:
// a leading "!" negates, a trailing "/" restricts the pattern to
// directories).
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

// LoadIgnoreFile builds an IgnoreMatcher from the patterns in a
// .gitignore-style file at path, skipping blank lines and comments. A
// missing file is not an error.
func LoadIgnoreFile(path string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.add(line)
	}
	return m, scanner.Err()
}

func (m *IgnoreMatcher) add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}
	p := ignorePattern{pattern: pattern}
	if strings.HasPrefix(p.pattern, "!") {
		p.isNegation = true
		p.pattern = p.pattern[1:]
	}
	if strings.HasSuffix(p.pattern, "/") {
		p.isDir = true
		p.pattern = strings.TrimSuffix(p.pattern, "/")
	}
	m.patterns = append(m.patterns, p)
}

// defaultIgnores are always applied, independent of user-supplied patterns.
var defaultIgnores = []string{
	".DS_Store", "Thumbs.db", "desktop.ini",
	".git", ".svn", ".hg", ".idea", ".vscode",
	"node_modules", "__pycache__",
	"*.pyc", "*.pyo", "*.swp", "*.swo", "*~", "#*#", ".#*",
}

// ShouldIgnore reports whether path (a file or directory) should be
// excluded from watching and from triggering a sync pass.
func (m *IgnoreMatcher) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)

	for _, pattern := range defaultIgnores {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	ignored := false
	for _, p := range m.patterns {
		if p.isDir && !isDir {
			continue
		}
		if m.matches(path, p.pattern) {
			ignored = !p.isNegation
		}
	}
	return ignored
}

func (m *IgnoreMatcher) matches(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.ContainsAny(pattern, "*?") {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
	}

	if filepath.Base(path) == pattern {
		return true
	}

	for _, part := range strings.Split(path, "/") {
		if part == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, part); matched {
			return true
		}
	}

	return false
}
