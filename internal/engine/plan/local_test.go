package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPlanLocalUploadMirrorsNestedStructure(t *testing.T) {
	root := t.TempDir()
	localRoot := filepath.Join(root, "myproject")
	writeFile(t, filepath.Join(localRoot, "readme.txt"), "hi")
	writeFile(t, filepath.Join(localRoot, "sub", "x", "f.ext"), "data")

	p := PlanLocalUpload(localRoot, "/remote/base")

	assert.Empty(t, p.Errors)
	assert.Contains(t, p.Folders, "/remote/base/myproject")
	assert.Contains(t, p.Folders, "/remote/base/myproject/sub")
	assert.Contains(t, p.Folders, "/remote/base/myproject/sub/x")

	var sawReadme, sawNested bool
	for _, task := range p.Tasks {
		if filepath.Base(task.LocalFile) == "readme.txt" {
			sawReadme = true
			assert.Equal(t, "/remote/base/myproject", task.RemoteFolder)
		}
		if filepath.Base(task.LocalFile) == "f.ext" {
			sawNested = true
			assert.Equal(t, "/remote/base/myproject/sub/x", task.RemoteFolder)
		}
	}
	assert.True(t, sawReadme)
	assert.True(t, sawNested)
}

func TestPlanLocalUploadCollectsUnreadableDirErrors(t *testing.T) {
	root := t.TempDir()
	localRoot := filepath.Join(root, "proj")
	require.NoError(t, os.MkdirAll(localRoot, 0o755))

	p := PlanLocalUpload(filepath.Join(localRoot, "missing-child"), "/remote")
	assert.NotEmpty(t, p.Errors)
}

func TestPlanLocalUploadEmptyTree(t *testing.T) {
	root := t.TempDir()
	localRoot := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(localRoot, 0o755))

	p := PlanLocalUpload(localRoot, "/remote")
	assert.Equal(t, []string{"/remote/empty"}, p.Folders)
	assert.Empty(t, p.Tasks)
	assert.Empty(t, p.Errors)
}
