package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreMatcherAppliesDefaultIgnores(t *testing.T) {
	m := NewIgnoreMatcher(nil)
	assert.True(t, m.ShouldIgnore("/repo/.git", true))
	assert.True(t, m.ShouldIgnore("/repo/node_modules", true))
	assert.True(t, m.ShouldIgnore("/repo/build/out.swp", false))
	assert.False(t, m.ShouldIgnore("/repo/main.go", false))
}

func TestIgnoreMatcherAppliesUserPatterns(t *testing.T) {
	m := NewIgnoreMatcher([]string{"*.tmp", "dist/"})
	assert.True(t, m.ShouldIgnore("/repo/scratch.tmp", false))
	assert.True(t, m.ShouldIgnore("/repo/dist", true))
	assert.False(t, m.ShouldIgnore("/repo/dist", false), "directory-only pattern should not match a file")
}

func TestIgnoreMatcherNegationReincludesAPath(t *testing.T) {
	m := NewIgnoreMatcher([]string{"*.log", "!keep.log"})
	assert.True(t, m.ShouldIgnore("/repo/debug.log", false))
	assert.False(t, m.ShouldIgnore("/repo/keep.log", false))
}

func TestLoadIgnoreFileParsesCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pulsepointignore")
	content := "# comment\n\n*.bak\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadIgnoreFile(path)
	require.NoError(t, err)
	assert.True(t, m.ShouldIgnore("/repo/file.bak", false))
}

func TestLoadIgnoreFileMissingFileIsNotAnError(t *testing.T) {
	m, err := LoadIgnoreFile(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.False(t, m.ShouldIgnore("/repo/anything", false))
}
